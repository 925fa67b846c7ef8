// Package storage archives raw campaign intake files to S3-compatible
// object storage. Archival is best-effort; campaigns run fine without it.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// IntakeArchive stores the raw number lists operators upload, one object
// per campaign. A nil archive drops everything.
type IntakeArchive struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewIntakeArchive builds the archive, or nil when object storage is not
// configured.
func NewIntakeArchive(cfg config.MinIOConfig, log *logger.Logger) (*IntakeArchive, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &IntakeArchive{
		client: client,
		bucket: cfg.GetMinioBucketIntake(),
		log:    log,
	}, nil
}

// EnsureBucket creates the intake bucket when it does not exist yet.
func (a *IntakeArchive) EnsureBucket(ctx context.Context) error {
	if a == nil {
		return nil
	}

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// ArchiveIntake stores a raw number list and returns its object key.
// Objects are grouped by upload month.
func (a *IntakeArchive) ArchiveIntake(ctx context.Context, campaignID uuid.UUID, data []byte) (string, error) {
	if a == nil {
		return "", nil
	}

	key := fmt.Sprintf("%s/%s.txt", time.Now().UTC().Format("2006/01"), campaignID)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return "", fmt.Errorf("archive intake %s: %w", key, err)
	}

	a.log.Info("intake archived",
		"campaign_id", campaignID.String(),
		"key", key,
		"bytes", len(data),
	)
	return key, nil
}
