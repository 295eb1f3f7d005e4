package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/clashroyale"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Kind string

const (
	NotFound Kind = "NOT_FOUND"
	Decided  Kind = "DECIDED"
	Draw     Kind = "DRAW"
)

// ErrConflict means both players' logs report a qualifying battle but the two
// records do not describe the same result.
var ErrConflict = errors.New("battle logs disagree")

// Outcome is expressed in duel terms: creator and opponent, not log owner.
type Outcome struct {
	Kind           Kind
	WinnerTag      string
	BattleTime     time.Time
	CreatorCrowns  int
	OpponentCrowns int
}

type BattleLogSource interface {
	BattleLog(ctx context.Context, tag string) []model.Battle
}

type Reconciler struct {
	source BattleLogSource
}

func New(source BattleLogSource) *Reconciler {
	return &Reconciler{source: source}
}

type candidate struct {
	battleTime     time.Time
	creatorCrowns  int
	opponentCrowns int
}

func (c candidate) String() string {
	return fmt.Sprintf("%s %d-%d", clashroyale.FormatBattleTime(c.battleTime), c.creatorCrowns, c.opponentCrowns)
}

// Reconcile looks for a battle between the two players fought strictly after since.
func (r *Reconciler) Reconcile(ctx context.Context, creatorTag, opponentTag string, since time.Time) (Outcome, error) {
	creatorTag = clashroyale.FormatTag(creatorTag)
	opponentTag = clashroyale.FormatTag(opponentTag)

	var creatorLog, opponentLog []model.Battle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		creatorLog = r.source.BattleLog(gctx, creatorTag)
		return nil
	})
	g.Go(func() error {
		opponentLog = r.source.BattleLog(gctx, opponentTag)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	fromCreator := findBattle(creatorLog, opponentTag, since)
	fromOpponent := findBattle(opponentLog, creatorTag, since)
	if fromOpponent != nil {
		fromOpponent.creatorCrowns, fromOpponent.opponentCrowns = fromOpponent.opponentCrowns, fromOpponent.creatorCrowns
	}

	var found *candidate
	switch {
	case fromCreator != nil && fromOpponent != nil:
		if !agree(*fromCreator, *fromOpponent) {
			return Outcome{}, fmt.Errorf("%w: %s vs %s: creator log %s, opponent log %s",
				ErrConflict, creatorTag, opponentTag, fromCreator, fromOpponent)
		}
		found = fromCreator
	case fromCreator != nil:
		found = fromCreator
	case fromOpponent != nil:
		found = fromOpponent
	default:
		return Outcome{Kind: NotFound}, nil
	}

	outcome := Outcome{
		Kind:           Decided,
		BattleTime:     found.battleTime,
		CreatorCrowns:  found.creatorCrowns,
		OpponentCrowns: found.opponentCrowns,
	}
	switch {
	case found.creatorCrowns > found.opponentCrowns:
		outcome.WinnerTag = creatorTag
	case found.opponentCrowns > found.creatorCrowns:
		outcome.WinnerTag = opponentTag
	default:
		outcome.Kind = Draw
	}
	return outcome, nil
}

// findBattle returns the first entry, in log order, against other after since.
// Crowns are returned as (log owner, other) in the creator/opponent slots.
func findBattle(battles []model.Battle, other string, since time.Time) *candidate {
	for _, battle := range battles {
		if len(battle.Team) == 0 || len(battle.Opponent) == 0 {
			continue
		}
		if !clashroyale.SameTag(battle.Opponent[0].Tag, other) {
			continue
		}
		battleTime, err := clashroyale.ParseBattleTime(battle.BattleTime)
		if err != nil {
			log.Debug().Err(err).Str("opponentTag", other).Msg("Skipping battle with unreadable time")
			continue
		}
		if !battleTime.After(since) {
			continue
		}
		return &candidate{
			battleTime:     battleTime,
			creatorCrowns:  battle.Team[0].Crowns,
			opponentCrowns: battle.Opponent[0].Crowns,
		}
	}
	return nil
}

func agree(a, b candidate) bool {
	return a.battleTime.Equal(b.battleTime) &&
		a.creatorCrowns == b.creatorCrowns &&
		a.opponentCrowns == b.opponentCrowns
}
