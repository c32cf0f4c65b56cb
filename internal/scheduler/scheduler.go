// Package scheduler holds the daily job bodies: renewal reminders and the
// database backup. cmd/worker drives them on a ticker; runs are independent
// of request traffic and overlap is not guarded at this scale.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"subtrack/internal/models"
)

type RequestSource interface {
	ListRenewingOn(ctx context.Context, day time.Time) ([]models.Request, error)
	ListSnapshot(ctx context.Context) ([]models.Request, error)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID string, text string) error
}

type SnapshotSink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

type Jobs struct {
	requests   RequestSource
	notifier   Notifier
	sink       SnapshotSink
	remindDays int
	lg         *zap.SugaredLogger
}

func NewJobs(requests RequestSource, notifier Notifier, sink SnapshotSink, remindDays int, lg *zap.SugaredLogger) *Jobs {
	return &Jobs{requests: requests, notifier: notifier, sink: sink, remindDays: remindDays, lg: lg}
}

// RemindRenewals notifies each requester whose subscription renews exactly
// remindDays from now. Send failures are logged and do not stop the scan.
func (j *Jobs) RemindRenewals(ctx context.Context, now time.Time) (int, error) {
	due, err := j.requests.ListRenewingOn(ctx, now.AddDate(0, 0, j.remindDays))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, r := range due {
		text := fmt.Sprintf("Subscription %s (request #%d) renews on %s",
			r.PlatformName, r.ID, r.RenewalDate.Format("2006-01-02"))
		if err := j.notifier.NotifyUser(ctx, r.RequesterID, text); err != nil {
			j.lg.Warnw("renewal reminder failed", "request", r.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Backup snapshots all requests (soft-deleted included) to the object store
// as dated JSON.
func (j *Jobs) Backup(ctx context.Context, now time.Time) error {
	rows, err := j.requests.ListSnapshot(ctx)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("backups/requests_%s.json", now.Format("2006-01-02"))
	if err := j.sink.Put(ctx, key, blob, "application/json"); err != nil {
		return err
	}
	j.lg.Infow("backup shipped", "key", key, "rows", len(rows))
	return nil
}
