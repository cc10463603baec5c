package snapshot_mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizsync/internal/services/gamesession"
)

const (
	keyPrefix   = "quiz:session:"
	pipeTimeout = 1500 * time.Millisecond
)

// Key is the hash holding the mirrored snapshot of a scope.
func Key(scopeKey string) string { return keyPrefix + scopeKey }

// Channel carries one message per mirrored snapshot.
func Channel(scopeKey string) string { return keyPrefix + scopeKey + ":events" }

type event struct {
	Event   string `json:"event"`
	Scope   string `json:"scope"`
	Status  string `json:"status"`
	Phase   string `json:"phase"`
	Round   int    `json:"round"`
	GameSeq int    `json:"gameSeq"`
}

// Mirror copies session snapshots into Redis for external dashboards.
type Mirror struct {
	rdc redis.Cmdable
	ttl time.Duration
}

func New(rdc redis.Cmdable, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Mirror{rdc: rdc, ttl: ttl}
}

// Write stores snap under its scope key and publishes a compact event.
// The idle scope is not mirrored.
func (m *Mirror) Write(ctx context.Context, snap gamesession.Snapshot) error {
	scope := snap.State.Scope
	if scope.IsNone() {
		return nil
	}

	state, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	payload, err := json.Marshal(event{
		Event:   "snapshot",
		Scope:   scope.Key(),
		Status:  snap.Status.String(),
		Phase:   snap.State.Phase.String(),
		Round:   snap.State.Round.Round,
		GameSeq: snap.State.GameSeq,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	key := Key(scope.Key())
	pipe := m.rdc.Pipeline()
	pipe.HSet(ctx, key,
		"phase", snap.State.Phase.String(),
		"round", snap.State.Round.Round,
		"status", snap.Status.String(),
		"state", string(state),
	)
	pipe.Expire(ctx, key, m.ttl)
	pipe.Publish(ctx, Channel(scope.Key()), string(payload))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror %s: %w", key, err)
	}
	return nil
}

// Run mirrors every snapshot until ctx ends or the session closes.
func (m *Mirror) Run(ctx context.Context, svc gamesession.IGameSession) {
	ch, cancel := svc.Watch()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, pipeTimeout)
			if err := m.Write(wctx, snap); err != nil {
				zap.L().Warn("mirror.write", zap.Error(err))
			}
			wcancel()
		}
	}
}
