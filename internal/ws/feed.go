package ws

import (
	"context"

	"go.uber.org/zap"

	"quizsync/internal/services/gamesession"
)

// Feed pushes every session snapshot to each view's room until ctx ends or
// the session closes.
func Feed(ctx context.Context, hub *Hub, svc gamesession.IGameSession) {
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
			for _, view := range views {
				msg, err := frameFor(view, snap)
				if err != nil {
					zap.L().Warn("ws.encode", zap.String("view", string(view)), zap.Error(err))
					continue
				}
				hub.Broadcast(view, msg)
			}
		}
	}
}
