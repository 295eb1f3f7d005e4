package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/reconcile"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = 60 * time.Second
	DefaultDeadline     = 30 * time.Minute
	defaultTickTimeout  = 30 * time.Second
)

type Reconciler interface {
	Reconcile(ctx context.Context, creatorTag, opponentTag string, since time.Time) (reconcile.Outcome, error)
}

// Resolver applies what a tick found. Both calls must tolerate a duel that
// already left ACCEPTED.
type Resolver interface {
	Complete(ctx context.Context, duelId string, outcome reconcile.Outcome) error
	Expire(ctx context.Context, duelId string) error
}

type Config struct {
	PollInterval time.Duration
	// Deadline applies to duels persisted without an explicit watch deadline.
	Deadline time.Duration
	// TickTimeout bounds a single reconciliation, defaults to half the interval capped at 30s.
	TickTimeout time.Duration
	Now         func() time.Time
}

type watch struct {
	duel     model.Duel
	deadline time.Time
	jobId    uuid.UUID
}

// Monitor polls every watched duel on its own schedule until a result is
// recorded, the deadline passes or Stop is called.
type Monitor struct {
	scheduler  gocron.Scheduler
	reconciler Reconciler
	lease      Lease

	pollInterval time.Duration
	deadline     time.Duration
	tickTimeout  time.Duration
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	resolver Resolver
	watched  map[string]watch
}

func New(reconciler Reconciler, lease Lease, cfg Config) (*Monitor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if lease == nil {
		lease = LocalLease{}
	}
	m := &Monitor{
		scheduler:    scheduler,
		reconciler:   reconciler,
		lease:        lease,
		pollInterval: cfg.PollInterval,
		deadline:     cfg.Deadline,
		tickTimeout:  cfg.TickTimeout,
		now:          cfg.Now,
		watched:      map[string]watch{},
	}
	if m.pollInterval <= 0 {
		m.pollInterval = DefaultPollInterval
	}
	if m.deadline <= 0 {
		m.deadline = DefaultDeadline
	}
	if m.tickTimeout <= 0 {
		m.tickTimeout = min(m.pollInterval/2, defaultTickTimeout)
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// Start begins running scheduled ticks. Duels watched before Start are polled
// once it is called.
func (m *Monitor) Start(resolver Resolver) {
	m.mu.Lock()
	m.resolver = resolver
	m.mu.Unlock()
	m.scheduler.Start()
	log.Info().Dur("pollInterval", m.pollInterval).Msg("Battle monitor started")
}

// Watch schedules polling for an accepted duel. Watching an already watched
// duel is a no-op.
func (m *Monitor) Watch(duel model.Duel) {
	if duel.Status != model.DuelAccepted || duel.OpponentTag == nil || duel.AcceptedAt == nil {
		log.Warn().Str("duelId", duel.Id).Str("status", string(duel.Status)).Msg("Refusing to watch duel that is not in progress")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watched[duel.Id]; ok {
		return
	}

	deadline := duel.AcceptedAt.Add(m.deadline)
	if duel.WatchDeadline != nil {
		deadline = *duel.WatchDeadline
	}

	id := duel.Id
	job, err := m.scheduler.NewJob(
		gocron.DurationJob(m.pollInterval),
		gocron.NewTask(func() { m.tick(id) }),
		gocron.WithName("duel-monitor-"+id),
		gocron.WithTags(id),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Error().Err(err).Str("duelId", id).Msg("Cannot schedule battle monitor")
		return
	}

	m.watched[id] = watch{duel: duel, deadline: deadline, jobId: job.ID()}
	log.Info().Str("duelId", id).Time("deadline", deadline).Msg("Battle monitor scheduled")
}

// Stop cancels polling for a duel. Safe to call any number of times.
func (m *Monitor) Stop(duelId string) {
	m.mu.Lock()
	w, ok := m.watched[duelId]
	delete(m.watched, duelId)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.scheduler.RemoveJob(w.jobId); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		log.Debug().Err(err).Str("duelId", duelId).Msg("Removing monitor job failed")
	}
	m.lease.Release(m.ctx, duelId)
	log.Debug().Str("duelId", duelId).Msg("Battle monitor stopped")
}

func (m *Monitor) Watching(duelId string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.watched[duelId]
	return ok
}

func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.watched)
}

// Shutdown stops every job and waits for running ticks to return. Durable
// watch state is left in place so the next process can rehydrate it.
func (m *Monitor) Shutdown() error {
	m.cancel()
	m.mu.Lock()
	m.watched = map[string]watch{}
	m.mu.Unlock()
	return m.scheduler.Shutdown()
}

func (m *Monitor) tick(duelId string) {
	m.mu.Lock()
	w, ok := m.watched[duelId]
	resolver := m.resolver
	m.mu.Unlock()
	if !ok || resolver == nil {
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.tickTimeout)
	defer cancel()

	if !m.lease.Acquire(ctx, duelId, m.pollInterval) {
		log.Debug().Str("duelId", duelId).Msg("Another instance holds the monitor lease")
		return
	}

	if !m.now().Before(w.deadline) {
		if err := resolver.Expire(ctx, duelId); err != nil {
			log.Warn().Err(err).Str("duelId", duelId).Msg("Failed to expire duel, retrying next tick")
			return
		}
		m.Stop(duelId)
		return
	}

	outcome, err := m.reconciler.Reconcile(ctx, w.duel.CreatorTag, *w.duel.OpponentTag, *w.duel.AcceptedAt)
	if err != nil {
		log.Warn().Err(err).Str("duelId", duelId).Msg("Reconciliation failed, retrying next tick")
		return
	}

	switch outcome.Kind {
	case reconcile.NotFound:
		log.Debug().Str("duelId", duelId).Msg("No battle found yet")
	case reconcile.Draw:
		log.Info().Str("duelId", duelId).Int("crowns", outcome.CreatorCrowns).Msg("Battle ended in a draw, still watching")
	case reconcile.Decided:
		if err := resolver.Complete(ctx, duelId, outcome); err != nil {
			log.Warn().Err(err).Str("duelId", duelId).Msg("Failed to record duel result, retrying next tick")
			return
		}
		m.Stop(duelId)
	}
}
