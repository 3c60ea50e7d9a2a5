package events

import (
	"context"

	"rummy-platform/backend/internal/cache"
	"rummy-platform/backend/internal/server/websocket"

	"go.uber.org/zap"

	rummyModels "rummy-engine/models"
)

// Broadcaster pushes a message to a session's subscribers
type Broadcaster interface {
	Broadcast(sessionID, msgType string, payload interface{}) int
}

// Forwarder drains the engine event channel, fanning each event out to
// websocket subscribers and keeping the stats cache fresh. Persistence does
// not go through here since the channel drops events under load.
type Forwarder struct {
	hub   Broadcaster
	cache *cache.StatsCache
	log   *zap.Logger
}

func NewForwarder(hub Broadcaster, statsCache *cache.StatsCache, log *zap.Logger) *Forwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forwarder{
		hub:   hub,
		cache: statsCache,
		log:   log.With(zap.String("component", "engine_events")),
	}
}

// Run consumes events until ctx is done or the channel closes
func (f *Forwarder) Run(ctx context.Context, events <-chan rummyModels.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			f.HandleEngineEvent(ctx, event)
		}
	}
}

// HandleEngineEvent processes one event from the session manager
func (f *Forwarder) HandleEngineEvent(ctx context.Context, event rummyModels.Event) {
	sessionID := event.SessionID
	f.log.Debug("engine event", zap.String("event", event.Event), zap.String("session_id", sessionID))

	switch event.Event {
	case rummyModels.EventAnalysis:
		report, ok := event.Data.(rummyModels.Report)
		if !ok {
			f.log.Warn("unexpected analysis payload", zap.String("session_id", sessionID))
			return
		}
		// the report only carries a stats summary; the next read refills
		f.cache.Invalidate(ctx, sessionID)
		f.hub.Broadcast(sessionID, websocket.MessageAnalysis, report)

	case rummyModels.EventScores:
		scores, ok := event.Data.(rummyModels.Scores)
		if !ok {
			f.log.Warn("unexpected scores payload", zap.String("session_id", sessionID))
			return
		}
		// the cached snapshot still holds the old tallies
		f.cache.Invalidate(ctx, sessionID)
		f.hub.Broadcast(sessionID, websocket.MessageScores, scores)

	case rummyModels.EventReset:
		stats, ok := event.Data.(rummyModels.Stats)
		if !ok {
			f.log.Warn("unexpected reset payload", zap.String("session_id", sessionID))
			return
		}
		// handlers cache the fresh snapshot; a late event must not overwrite it
		f.cache.Invalidate(ctx, sessionID)
		f.hub.Broadcast(sessionID, websocket.MessageReset, stats)

	default:
		f.log.Warn("unknown engine event", zap.String("event", event.Event))
	}
}
