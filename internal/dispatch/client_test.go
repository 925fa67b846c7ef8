package dispatch

import (
	"context"
	"testing"

	"autodial_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func TestEnqueueCampaignDispatch(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&config.Config{RedisURL: "redis://" + mr.Addr(), DispatchQueue: "dialer"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	campaignID := uuid.New()
	if err := client.EnqueueCampaignDispatch(context.Background(), campaignID); err != nil {
		t.Fatalf("EnqueueCampaignDispatch() error = %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("dialer")
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskCampaignDispatch {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskCampaignDispatch)
	}
	if tasks[0].MaxRetry != 0 {
		t.Errorf("max retry = %d, want 0", tasks[0].MaxRetry)
	}

	payload, err := ParseCampaignDispatchPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("ParseCampaignDispatchPayload() error = %v", err)
	}
	if payload.CampaignID != campaignID.String() {
		t.Errorf("payload campaign id = %q, want %q", payload.CampaignID, campaignID)
	}
}

func TestEnqueueDefaultsQueueName(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&config.Config{RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if err := client.EnqueueCampaignDispatch(context.Background(), uuid.New()); err != nil {
		t.Fatalf("EnqueueCampaignDispatch() error = %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("default")
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks on default queue = %d, want 1", len(tasks))
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(&config.Config{}); err == nil {
		t.Fatal("NewClient() with empty redis url should fail")
	}
}

func TestNilClientRefusesEnqueue(t *testing.T) {
	var client *Client
	if err := client.EnqueueCampaignDispatch(context.Background(), uuid.New()); err == nil {
		t.Fatal("nil client should refuse to enqueue")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client Close() error = %v", err)
	}
}
