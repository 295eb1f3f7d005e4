package duel

import (
	"context"
	"errors"
	"time"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
)

var (
	ErrNotFound = errors.New("duel not found")
	// ErrNotTransitioned is returned when a guarded update matched no row in the
	// expected prior status.
	ErrNotTransitioned = errors.New("duel not in expected status")
)

type AcceptInput struct {
	Opponent      model.Party
	AcceptedAt    time.Time
	WatchDeadline time.Time
}

type CompleteInput struct {
	WinnerTag      string
	BattleTime     time.Time
	CreatorCrowns  int
	OpponentCrowns int
	CompletedAt    time.Time
}

type ListFilter struct {
	PlayerTag string
	Limit     int
	Offset    int
}

// Repository owns durable duel state. Every transition is a single conditional
// update keyed on id and the allowed prior statuses.
type Repository interface {
	Create(ctx context.Context, duel *model.Duel) error
	Get(ctx context.Context, id string) (*model.Duel, error)
	List(ctx context.Context, filter ListFilter) ([]model.Duel, int64, error)
	Accept(ctx context.Context, id string, in AcceptInput) (*model.Duel, error)
	Complete(ctx context.Context, id string, in CompleteInput) (*model.Duel, error)
	Cancel(ctx context.Context, id string, from []model.DuelStatus, at time.Time) (*model.Duel, error)
	ListWatching(ctx context.Context) ([]model.Duel, error)
	Ping(ctx context.Context) error
}
