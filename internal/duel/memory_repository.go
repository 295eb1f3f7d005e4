package duel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
)

// MemoryRepository keeps duels in process memory with the same guarded
// transition semantics as the database. Used by tests and STORE=memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	duels map[string]model.Duel
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{duels: map[string]model.Duel{}}
}

func (r *MemoryRepository) Create(_ context.Context, duel *model.Duel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.duels[duel.Id]; exists {
		return fmt.Errorf("insert duel %s: duplicate id", duel.Id)
	}
	r.duels[duel.Id] = cloneDuel(*duel)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*model.Duel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	duel, ok := r.duels[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneDuel(duel)
	return &out, nil
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]model.Duel, int64, error) {
	r.mu.RLock()
	matched := []model.Duel{}
	for _, duel := range r.duels {
		if filter.PlayerTag == "" || duel.Involves(filter.PlayerTag) {
			matched = append(matched, cloneDuel(duel))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Id > matched[j].Id
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Limit > 0 {
		start := min(filter.Offset, len(matched))
		end := min(start+filter.Limit, len(matched))
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *MemoryRepository) Accept(_ context.Context, id string, in AcceptInput) (*model.Duel, error) {
	return r.transition(id, []model.DuelStatus{model.DuelPending}, func(d *model.Duel) {
		d.Status = model.DuelAccepted
		d.OpponentTag = &in.Opponent.Tag
		d.OpponentName = &in.Opponent.Name
		d.OpponentTrophies = &in.Opponent.Trophies
		d.AcceptedAt = &in.AcceptedAt
		d.Watching = true
		d.WatchDeadline = &in.WatchDeadline
	})
}

func (r *MemoryRepository) Complete(_ context.Context, id string, in CompleteInput) (*model.Duel, error) {
	return r.transition(id, []model.DuelStatus{model.DuelAccepted}, func(d *model.Duel) {
		d.Status = model.DuelCompleted
		d.WinnerTag = &in.WinnerTag
		d.BattleTime = &in.BattleTime
		d.CreatorCrowns = &in.CreatorCrowns
		d.OpponentCrowns = &in.OpponentCrowns
		d.CompletedAt = &in.CompletedAt
		d.Watching = false
	})
}

func (r *MemoryRepository) Cancel(_ context.Context, id string, from []model.DuelStatus, at time.Time) (*model.Duel, error) {
	return r.transition(id, from, func(d *model.Duel) {
		d.Status = model.DuelCancelled
		d.CompletedAt = &at
		d.Watching = false
	})
}

func (r *MemoryRepository) ListWatching(_ context.Context) ([]model.Duel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Duel{}
	for _, duel := range r.duels {
		if duel.Status == model.DuelAccepted && duel.Watching {
			out = append(out, cloneDuel(duel))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcceptedAt.Before(*out[j].AcceptedAt) })
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryRepository) transition(id string, from []model.DuelStatus, apply func(*model.Duel)) (*model.Duel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	duel, ok := r.duels[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !statusIn(duel.Status, from) {
		return nil, ErrNotTransitioned
	}
	apply(&duel)
	r.duels[id] = cloneDuel(duel)
	out := cloneDuel(duel)
	return &out, nil
}

func statusIn(status model.DuelStatus, allowed []model.DuelStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// cloneDuel copies pointer fields so callers never share state with the map.
func cloneDuel(d model.Duel) model.Duel {
	d.OpponentTag = clonePtr(d.OpponentTag)
	d.OpponentName = clonePtr(d.OpponentName)
	d.OpponentTrophies = clonePtr(d.OpponentTrophies)
	d.AcceptedAt = clonePtr(d.AcceptedAt)
	d.CompletedAt = clonePtr(d.CompletedAt)
	d.WinnerTag = clonePtr(d.WinnerTag)
	d.BattleTime = clonePtr(d.BattleTime)
	d.CreatorCrowns = clonePtr(d.CreatorCrowns)
	d.OpponentCrowns = clonePtr(d.OpponentCrowns)
	d.WatchDeadline = clonePtr(d.WatchDeadline)
	return d
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
