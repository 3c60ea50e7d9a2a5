package publisher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"rummy-platform/backend/internal/cache"
	"rummy-platform/backend/internal/locks"

	"go.uber.org/zap"

	"rummy-engine/engine"
	rummyModels "rummy-engine/models"
)

const DefaultInterval = 2 * time.Second

// Evaluator is the slice of the session manager the publisher drives
type Evaluator interface {
	Evaluate(sessionID string, req engine.EvaluateRequest) (rummyModels.Report, error)
}

type observation struct {
	req     engine.EvaluateRequest
	pending bool
}

// Publisher keeps the latest observed table per session and evaluates it on
// every tick. Evaluation results reach subscribers through the session
// manager's event channel.
type Publisher struct {
	evaluator Evaluator
	locks     *locks.LockManager
	cache     *cache.StatsCache
	interval  time.Duration
	log       *zap.Logger

	mu           sync.Mutex
	observations map[string]*observation // session_id -> latest observation
}

func New(evaluator Evaluator, lockManager *locks.LockManager, statsCache *cache.StatsCache, interval time.Duration, log *zap.Logger) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		evaluator:    evaluator,
		locks:        lockManager,
		cache:        statsCache,
		interval:     interval,
		log:          log.With(zap.String("component", "publisher")),
		observations: make(map[string]*observation),
	}
}

// Observe replaces the latest observation for a session. It is evaluated on
// the next tick.
func (p *Publisher) Observe(sessionID string, req engine.EvaluateRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.observations[sessionID] = &observation{req: req, pending: true}
}

// Latest returns the most recent observation for a session
func (p *Publisher) Latest(sessionID string) (engine.EvaluateRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	obs, ok := p.observations[sessionID]
	if !ok {
		return engine.EvaluateRequest{}, false
	}
	return obs.req, true
}

// Forget drops a session's observation, e.g. when the session closes
func (p *Publisher) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.observations, sessionID)
}

// Start runs the publish loop until ctx is cancelled
func (p *Publisher) Start(ctx context.Context) {
	p.log.Info("Publisher started", zap.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.PublishPending(ctx)
		case <-ctx.Done():
			p.log.Info("Publisher stopped")
			return
		}
	}
}

// PublishPending evaluates every observation that changed since the last tick
// and returns how many sessions were evaluated. An unchanged hand is not
// re-evaluated so the action log only grows when the table does.
func (p *Publisher) PublishPending(ctx context.Context) int {
	p.mu.Lock()
	ids := make([]string, 0, len(p.observations))
	for id, obs := range p.observations {
		if obs.pending {
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()
	sort.Strings(ids)

	published := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := p.publish(ctx, id); err != nil {
			p.log.Warn("Failed to publish analysis", zap.String("session_id", id), zap.Error(err))
			if errors.Is(err, engine.ErrSessionNotFound) {
				p.Forget(id)
			}
			continue
		}
		published++
	}
	return published
}

func (p *Publisher) publish(ctx context.Context, sessionID string) error {
	return p.locks.WithLock(ctx, "session:"+sessionID, func() error {
		p.mu.Lock()
		obs, ok := p.observations[sessionID]
		if !ok || !obs.pending {
			p.mu.Unlock()
			return nil
		}
		req := obs.req
		obs.pending = false
		p.mu.Unlock()

		if _, err := p.evaluator.Evaluate(sessionID, req); err != nil {
			return err
		}
		p.cache.Invalidate(ctx, sessionID)
		return nil
	})
}
