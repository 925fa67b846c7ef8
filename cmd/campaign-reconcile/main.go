package main

import (
	"context"
	"os"
	"strings"
	"time"

	callsrepo "autodial_backend/internal/calls/repository"
	"autodial_backend/platform/config"
	platformdb "autodial_backend/platform/db"
	"autodial_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	age := getDurationEnv("RECONCILE_AGE", 30*time.Minute)
	log.Info("starting stale call reconnaissance", "older_than", age.String())

	ctx := context.Background()
	pool, err := platformdb.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	repo := callsrepo.New(pool)
	records, err := repo.ListStaleNonTerminal(ctx, age)
	if err != nil {
		log.Error("failed to list stale call records", "error", err)
		panic("failed to list stale call records: " + err.Error())
	}

	if len(records) == 0 {
		log.Info("no stale call records found")
		return
	}

	// Records are listed, never touched. The PBX owns call state; a record
	// stuck here means a manager event was lost, and force-failing it would
	// hide exactly the anomaly this tool exists to surface.
	byStatus := make(map[string]int)
	for _, rec := range records {
		byStatus[string(rec.Status)]++
		campaignID := ""
		if rec.CampaignID != nil {
			campaignID = rec.CampaignID.String()
		}
		log.Warn("stale call record",
			"call_id", rec.CallID,
			"status", string(rec.Status),
			"target", rec.TargetNumber,
			"campaign_id", campaignID,
			"unique_id", rec.UniqueID,
			"updated_at", rec.UpdatedAt.Format(time.RFC3339),
			"age", time.Since(rec.UpdatedAt).Round(time.Second).String(),
		)
	}

	log.Info("stale call records found", "total", len(records), "by_status", byStatus)
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
