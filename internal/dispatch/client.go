package dispatch

import (
	"context"
	"crypto/tls"
	"fmt"

	campaignsservice "autodial_backend/internal/campaigns/service"
	"autodial_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues campaign dispatch jobs. It implements the
// campaigns/service.DispatchEnqueuer interface.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.DispatchConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetDispatchQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueCampaignDispatch hands a campaign to the dispatch worker. The task
// never retries: redelivering a dial job after a failure risks double
// dialing, and stuck campaigns are surfaced by the reconcile tool instead.
func (c *Client) EnqueueCampaignDispatch(ctx context.Context, campaignID uuid.UUID) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("dispatch client not configured")
	}

	task, err := NewCampaignDispatchTask(CampaignDispatchPayload{CampaignID: campaignID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(0))
	return err
}

var _ campaignsservice.DispatchEnqueuer = (*Client)(nil)

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
