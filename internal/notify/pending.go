package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActionKind names a chat action awaiting a reply.
type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
	ActionRenewal ActionKind = "renewal"
)

var ErrNoPending = errors.New("no pending action")

// PendingAction records that a prompt was sent to a chat and which request
// it concerns. Replies resolve against this record instead of parsing the
// quoted prompt text back out of the reply.
type PendingAction struct {
	ChatID    int64
	Kind      ActionKind
	RequestID uint
}

// PendingStore keeps pending actions in Redis with an expiry, keyed by
// {chat id, action kind}.
type PendingStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPendingStore(rdb *redis.Client, ttl time.Duration) *PendingStore {
	return &PendingStore{rdb: rdb, ttl: ttl}
}

func key(chatID int64, kind ActionKind) string {
	return fmt.Sprintf("pending:%d:%s", chatID, kind)
}

func (p *PendingStore) Put(ctx context.Context, a PendingAction) error {
	return p.rdb.Set(ctx, key(a.ChatID, a.Kind), strconv.FormatUint(uint64(a.RequestID), 10), p.ttl).Err()
}

// Take consumes the pending action for the chat and kind, if one exists and
// has not expired. Consumption is atomic (GETDEL) so a reply resolves at
// most once.
func (p *PendingStore) Take(ctx context.Context, chatID int64, kind ActionKind) (*PendingAction, error) {
	val, err := p.rdb.GetDel(ctx, key(chatID, kind)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt pending action: %w", err)
	}
	return &PendingAction{ChatID: chatID, Kind: kind, RequestID: uint(id)}, nil
}
