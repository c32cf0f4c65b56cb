package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"subtrack/internal/models"
)

type stubSource struct {
	renewing []models.Request
	all      []models.Request
}

func (s *stubSource) ListRenewingOn(_ context.Context, _ time.Time) ([]models.Request, error) {
	return s.renewing, nil
}

func (s *stubSource) ListSnapshot(_ context.Context) ([]models.Request, error) {
	return s.all, nil
}

type stubNotifier struct {
	sent   map[string][]string
	failAt string
}

func (s *stubNotifier) NotifyUser(_ context.Context, userID, text string) error {
	if userID == s.failAt {
		return errors.New("unreachable")
	}
	if s.sent == nil {
		s.sent = map[string][]string{}
	}
	s.sent[userID] = append(s.sent[userID], text)
	return nil
}

type stubSink struct {
	keys map[string][]byte
}

func (s *stubSink) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.keys == nil {
		s.keys = map[string][]byte{}
	}
	s.keys[key] = data
	return nil
}

func renewReq(id uint, requester string, renew time.Time) models.Request {
	return models.Request{
		ID: id, PlatformName: "Slack", RequesterID: requester,
		Status: models.StatusActive, RenewalDate: &renew,
	}
}

func TestRemindRenewals(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	renew := now.AddDate(0, 0, 7)
	src := &stubSource{renewing: []models.Request{
		renewReq(1, "u1", renew),
		renewReq(2, "u-gone", renew),
		renewReq(3, "u2", renew),
	}}
	n := &stubNotifier{failAt: "u-gone"}
	jobs := NewJobs(src, n, &stubSink{}, 7, zap.NewNop().Sugar())

	sent, err := jobs.RemindRenewals(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, sent, "failed sends are skipped, not fatal")
	assert.Contains(t, n.sent["u1"][0], "renews on 2025-08-08")
}

func TestBackup(t *testing.T) {
	deleted := time.Now()
	src := &stubSource{all: []models.Request{
		{ID: 1, PlatformName: "Slack"},
		{ID: 2, PlatformName: "Jira", DeletedAt: &deleted},
	}}
	sink := &stubSink{}
	jobs := NewJobs(src, &stubNotifier{}, sink, 7, zap.NewNop().Sugar())

	now := time.Date(2025, 8, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.Backup(context.Background(), now))

	blob, ok := sink.keys["backups/requests_2025-08-01.json"]
	require.True(t, ok)
	var rows []models.Request
	require.NoError(t, json.Unmarshal(blob, &rows))
	assert.Len(t, rows, 2, "snapshot keeps soft-deleted rows")
}
