package duel

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/clashroyale"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/reconcile"
	"github.com/stretchr/testify/require"
)

const (
	creatorTag  = "#CREATOR1"
	opponentTag = "#OPPONENT1"
	veteranTag  = "#2PP"
)

var testNow = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

type fakePlayers struct {
	players map[string]model.Player
	err     error
}

func (f *fakePlayers) Player(_ context.Context, tag string) (*model.Player, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.players[clashroyale.FormatTag(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", clashroyale.ErrPlayerNotFound, tag)
	}
	return &p, nil
}

type fakeReconciler struct {
	mu      sync.Mutex
	outcome reconcile.Outcome
	err     error
	since   time.Time
}

func (f *fakeReconciler) Reconcile(_ context.Context, _, _ string, since time.Time) (reconcile.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return f.outcome, f.err
}

type fakeWatcher struct {
	mu      sync.Mutex
	watched map[string]model.Duel
	stopped []string
}

func (f *fakeWatcher) Watch(duel model.Duel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched[duel.Id] = duel
}

func (f *fakeWatcher) Stop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watched, id)
	f.stopped = append(f.stopped, id)
}

func (f *fakeWatcher) isWatching(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.watched[id]
	return ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []DuelEvent
}

func (p *recordingPublisher) Publish(_ context.Context, message pubsub.Publishable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event, ok := message.(DuelEvent); ok {
		p.events = append(p.events, event)
	}
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	service    *Service
	repo       *MemoryRepository
	players    *fakePlayers
	reconciler *fakeReconciler
	watcher    *fakeWatcher
	publisher  *recordingPublisher
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: NewMemoryRepository(),
		players: &fakePlayers{players: map[string]model.Player{
			creatorTag:  {Tag: creatorTag, Name: "Creator", Trophies: 5000},
			opponentTag: {Tag: opponentTag, Name: "Opponent", Trophies: 4800},
			veteranTag:  {Tag: veteranTag, Name: "Veteran", Trophies: 7000},
		}},
		reconciler: &fakeReconciler{outcome: reconcile.Outcome{Kind: reconcile.NotFound}},
		watcher:    &fakeWatcher{watched: map[string]model.Duel{}},
		publisher:  &recordingPublisher{},
		now:        testNow,
	}
	seq := 0
	f.service = NewService(f.repo, f.players, f.reconciler, f.watcher, f.publisher, ServiceConfig{
		MonitorDeadline: 30 * time.Minute,
		Now:             func() time.Time { return f.now },
		NewId: func(now time.Time) string {
			seq++
			return fmt.Sprintf("CR_%d_%09d", now.UnixMilli(), seq)
		},
	})
	return f
}

func (f *fixture) createDuel(t *testing.T) *model.Duel {
	t.Helper()
	duel, problem := f.service.Create(context.Background(), CreateDuelRequest{
		PlayerTag: creatorTag, WagerAmount: "1.5", Token: "SOL",
	})
	require.Nil(t, problem)
	return duel
}

func (f *fixture) acceptedDuel(t *testing.T) *model.Duel {
	t.Helper()
	duel := f.createDuel(t)
	accepted, problem := f.service.Accept(context.Background(), duel.Id, opponentTag)
	require.Nil(t, problem)
	return accepted
}
