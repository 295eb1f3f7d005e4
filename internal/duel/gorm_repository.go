package duel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"gorm.io/gorm"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Migrate() error {
	return r.db.AutoMigrate(&model.Duel{})
}

func (r *GormRepository) Create(ctx context.Context, duel *model.Duel) error {
	if err := r.db.WithContext(ctx).Create(duel).Error; err != nil {
		return fmt.Errorf("insert duel %s: %w", duel.Id, err)
	}
	return nil
}

func (r *GormRepository) Get(ctx context.Context, id string) (*model.Duel, error) {
	var duel model.Duel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&duel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select duel %s: %w", id, err)
	}
	return &duel, nil
}

func (r *GormRepository) List(ctx context.Context, filter ListFilter) ([]model.Duel, int64, error) {
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&model.Duel{})
		if filter.PlayerTag != "" {
			query = query.Where("creator_tag = ? OR opponent_tag = ?", filter.PlayerTag, filter.PlayerTag)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count duels: %w", err)
	}

	duels := []model.Duel{}
	page := scoped().Order("created_at DESC")
	if filter.Limit > 0 {
		page = page.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := page.Find(&duels).Error; err != nil {
		return nil, 0, fmt.Errorf("list duels: %w", err)
	}
	return duels, total, nil
}

func (r *GormRepository) Accept(ctx context.Context, id string, in AcceptInput) (*model.Duel, error) {
	return r.transition(ctx, id, []model.DuelStatus{model.DuelPending}, map[string]any{
		"status":            model.DuelAccepted,
		"opponent_tag":      in.Opponent.Tag,
		"opponent_name":     in.Opponent.Name,
		"opponent_trophies": in.Opponent.Trophies,
		"accepted_at":       in.AcceptedAt,
		"watching":          true,
		"watch_deadline":    in.WatchDeadline,
	})
}

func (r *GormRepository) Complete(ctx context.Context, id string, in CompleteInput) (*model.Duel, error) {
	return r.transition(ctx, id, []model.DuelStatus{model.DuelAccepted}, map[string]any{
		"status":          model.DuelCompleted,
		"winner_tag":      in.WinnerTag,
		"battle_time":     in.BattleTime,
		"creator_crowns":  in.CreatorCrowns,
		"opponent_crowns": in.OpponentCrowns,
		"completed_at":    in.CompletedAt,
		"watching":        false,
	})
}

func (r *GormRepository) Cancel(ctx context.Context, id string, from []model.DuelStatus, at time.Time) (*model.Duel, error) {
	return r.transition(ctx, id, from, map[string]any{
		"status":       model.DuelCancelled,
		"completed_at": at,
		"watching":     false,
	})
}

func (r *GormRepository) ListWatching(ctx context.Context) ([]model.Duel, error) {
	duels := []model.Duel{}
	err := r.db.WithContext(ctx).
		Where("status = ? AND watching = ?", model.DuelAccepted, true).
		Order("accepted_at").
		Find(&duels).Error
	if err != nil {
		return nil, fmt.Errorf("list watched duels: %w", err)
	}
	return duels, nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDb, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.PingContext(ctx)
}

// transition runs one UPDATE guarded by the prior status. A miss is resolved to
// ErrNotFound or ErrNotTransitioned by reading the row back.
func (r *GormRepository) transition(ctx context.Context, id string, from []model.DuelStatus, values map[string]any) (*model.Duel, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Duel{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("update duel %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotTransitioned
	}
	return r.Get(ctx, id)
}
