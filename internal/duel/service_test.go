package duel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDuelId(t *testing.T) {
	id := NewDuelId(testNow)
	assert.Regexp(t, regexp.MustCompile(`^CR_1737374400000_[0-9a-z]{9}$`), id)
	assert.NotEqual(t, id, NewDuelId(testNow))
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	duel, problem := f.service.Create(context.Background(), CreateDuelRequest{
		PlayerTag: "creator1", WagerAmount: "2.50", Token: "usdc",
	})
	require.Nil(t, problem)

	assert.Equal(t, model.DuelPending, duel.Status)
	assert.Equal(t, creatorTag, duel.CreatorTag)
	assert.Equal(t, "Creator", duel.CreatorName)
	assert.Equal(t, 5000, duel.CreatorTrophies)
	assert.Equal(t, "2.50", duel.WagerAmount)
	assert.Equal(t, model.TokenUSDC, duel.WagerToken)
	assert.Equal(t, testNow, duel.CreatedAt)
	assert.Nil(t, duel.OpponentTag)
	assert.False(t, duel.Watching)

	stored, err := f.repo.Get(context.Background(), duel.Id)
	require.NoError(t, err)
	assert.Equal(t, duel.Id, stored.Id)
	assert.Equal(t, []EventType{EventCreated}, f.publisher.types())
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	_, problem := f.service.Create(context.Background(), CreateDuelRequest{})
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
	assert.Equal(t, "Missing required parameters", problem.Problem.Title)
	assert.Len(t, problem.Problem.Errors, 3)

	cases := map[string]CreateDuelRequest{
		"unsupported token": {PlayerTag: creatorTag, WagerAmount: "1", Token: "DOGE"},
		"not a number":      {PlayerTag: creatorTag, WagerAmount: "abc", Token: "SOL"},
		"negative":          {PlayerTag: creatorTag, WagerAmount: "-1", Token: "SOL"},
		"zero":              {PlayerTag: creatorTag, WagerAmount: "0.00", Token: "SOL"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, problem := f.service.Create(context.Background(), req)
			require.NotNil(t, problem)
			assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
			require.Len(t, problem.Problem.Errors, 1)
			assert.Equal(t, problem.Problem.Errors[0].Info, problem.Problem.Title)
		})
	}
	assert.Empty(t, f.publisher.types())
}

func TestCreate_InvalidPlayer(t *testing.T) {
	f := newFixture(t)

	for _, tag := range []string{"#BAD-TAG", "#NOTAPLAYER"} {
		_, problem := f.service.Create(context.Background(), CreateDuelRequest{PlayerTag: tag, WagerAmount: "1", Token: "SOL"})
		require.NotNil(t, problem, tag)
		assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
		assert.Equal(t, duelInvalidPlayer, problem.Problem.Code)
		assert.Equal(t, "Invalid Clash Royale player tag", problem.Problem.Error)
	}

	f.players.err = errors.New("connection reset")
	_, problem := f.service.Create(context.Background(), CreateDuelRequest{PlayerTag: creatorTag, WagerAmount: "1", Token: "SOL"})
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusInternalServerError, problem.Problem.Status)
	assert.NotEqual(t, duelInvalidPlayer, problem.Problem.Code)
}

func TestCreate_ShortTag(t *testing.T) {
	f := newFixture(t)

	duel, problem := f.service.Create(context.Background(), CreateDuelRequest{PlayerTag: "2pp", WagerAmount: "1", Token: "SOL"})
	require.Nil(t, problem)
	assert.Equal(t, veteranTag, duel.CreatorTag)

	accepted, problem := f.service.Accept(context.Background(), f.createDuel(t).Id, veteranTag)
	require.Nil(t, problem)
	assert.Equal(t, veteranTag, *accepted.OpponentTag)
}

func TestCreate_PlayerNameCheck(t *testing.T) {
	f := newFixture(t)

	_, problem := f.service.Create(context.Background(), CreateDuelRequest{
		PlayerTag: creatorTag, PlayerName: "Someone Else", WagerAmount: "1", Token: "SOL",
	})
	require.NotNil(t, problem)
	assert.Equal(t, duelNameMismatch, problem.Problem.Code)

	duel, problem := f.service.Create(context.Background(), CreateDuelRequest{
		PlayerTag: creatorTag, PlayerName: "cReAtOr", WagerAmount: "1", Token: "SOL",
	})
	require.Nil(t, problem)
	assert.Equal(t, "Creator", duel.CreatorName)
}

func TestAccept(t *testing.T) {
	f := newFixture(t)
	duel := f.createDuel(t)
	f.now = testNow.Add(time.Minute)

	accepted, problem := f.service.Accept(context.Background(), duel.Id, "opponent1")
	require.Nil(t, problem)

	assert.Equal(t, model.DuelAccepted, accepted.Status)
	require.NotNil(t, accepted.Opponent())
	assert.Equal(t, model.Party{Tag: opponentTag, Name: "Opponent", Trophies: 4800}, *accepted.Opponent())
	assert.Equal(t, f.now, *accepted.AcceptedAt)
	assert.True(t, accepted.Watching)
	assert.Equal(t, f.now.Add(30*time.Minute), *accepted.WatchDeadline)
	assert.True(t, f.watcher.isWatching(duel.Id))
	assert.Equal(t, []EventType{EventCreated, EventAccepted}, f.publisher.types())
}

func TestAccept_Rejections(t *testing.T) {
	f := newFixture(t)
	duel := f.createDuel(t)

	_, problem := f.service.Accept(context.Background(), "CR_missing", opponentTag)
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusNotFound, problem.Problem.Status)

	_, problem = f.service.Accept(context.Background(), duel.Id, "")
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
	assert.Equal(t, "Player tag is required", problem.Problem.Title)

	_, problem = f.service.Accept(context.Background(), duel.Id, "creator1")
	require.NotNil(t, problem)
	assert.Equal(t, duelOwnDuel, problem.Problem.Code)

	_, problem = f.service.Accept(context.Background(), duel.Id, "#NOTAPLAYER")
	require.NotNil(t, problem)
	assert.Equal(t, duelInvalidPlayer, problem.Problem.Code)

	_, problem = f.service.Accept(context.Background(), duel.Id, opponentTag)
	require.Nil(t, problem)

	_, problem = f.service.Accept(context.Background(), duel.Id, opponentTag)
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
	assert.Equal(t, duelInvalidState, problem.Problem.Code)
	assert.Equal(t, "Duel is no longer available", problem.Problem.Title)
}

// racingRepository lets Get observe PENDING while the guarded update loses.
type racingRepository struct {
	*MemoryRepository
}

func (r racingRepository) Accept(context.Context, string, AcceptInput) (*model.Duel, error) {
	return nil, ErrNotTransitioned
}

func TestAccept_LostRace(t *testing.T) {
	f := newFixture(t)
	duel := f.createDuel(t)
	service := NewService(racingRepository{f.repo}, f.players, f.reconciler, f.watcher, f.publisher, ServiceConfig{})

	_, problem := service.Accept(context.Background(), duel.Id, opponentTag)
	require.NotNil(t, problem)
	assert.Equal(t, duelInvalidState, problem.Problem.Code)
	assert.False(t, f.watcher.isWatching(duel.Id))
}

func TestVerify_Decided(t *testing.T) {
	f := newFixture(t)
	duel := f.acceptedDuel(t)
	battleTime := testNow.Add(5 * time.Minute)
	f.reconciler.outcome = reconcile.Outcome{
		Kind: reconcile.Decided, WinnerTag: opponentTag, BattleTime: battleTime, CreatorCrowns: 1, OpponentCrowns: 3,
	}

	completed, problem := f.service.Verify(context.Background(), duel.Id)
	require.Nil(t, problem)

	assert.Equal(t, *duel.AcceptedAt, f.reconciler.since)
	assert.Equal(t, model.DuelCompleted, completed.Status)
	assert.Equal(t, opponentTag, *completed.WinnerTag)
	assert.Equal(t, &model.BattleResult{BattleTime: battleTime, CreatorCrowns: 1, OpponentCrowns: 3}, completed.Result())
	assert.NotNil(t, completed.CompletedAt)
	assert.False(t, completed.Watching)
	assert.False(t, f.watcher.isWatching(duel.Id))
	assert.Equal(t, []EventType{EventCreated, EventAccepted, EventCompleted}, f.publisher.types())
}

func TestVerify_Unresolved(t *testing.T) {
	f := newFixture(t)
	duel := f.acceptedDuel(t)

	cases := []struct {
		name      string
		outcome   reconcile.Outcome
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"not found", reconcile.Outcome{Kind: reconcile.NotFound}, nil, http.StatusNotFound, duelBattleNotFound, true},
		{"draw", reconcile.Outcome{Kind: reconcile.Draw, CreatorCrowns: 1, OpponentCrowns: 1}, nil, http.StatusConflict, duelDraw, true},
		{"conflict", reconcile.Outcome{}, fmt.Errorf("%w: times differ", reconcile.ErrConflict), http.StatusConflict, duelResultConflict, true},
		{"upstream", reconcile.Outcome{}, errors.New("boom"), http.StatusInternalServerError, "error.generic.upstream-unavailable", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.reconciler.outcome, f.reconciler.err = tc.outcome, tc.err

			_, problem := f.service.Verify(context.Background(), duel.Id)
			require.NotNil(t, problem)
			assert.Equal(t, tc.status, problem.Problem.Status)
			assert.Equal(t, tc.code, problem.Problem.Code)
			assert.Equal(t, tc.retryable, problem.Problem.Retry)

			stored, err := f.repo.Get(context.Background(), duel.Id)
			require.NoError(t, err)
			assert.Equal(t, model.DuelAccepted, stored.Status)
			assert.Nil(t, stored.WinnerTag)
		})
	}
	assert.True(t, f.watcher.isWatching(duel.Id))
}

func TestVerify_NotInProgress(t *testing.T) {
	f := newFixture(t)
	duel := f.createDuel(t)

	_, problem := f.service.Verify(context.Background(), duel.Id)
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
	assert.Equal(t, "Duel is not in progress", problem.Problem.Title)

	_, problem = f.service.Cancel(context.Background(), duel.Id)
	require.Nil(t, problem)
	_, problem = f.service.Verify(context.Background(), duel.Id)
	require.NotNil(t, problem)
	assert.Equal(t, "Duel is already resolved", problem.Problem.Title)

	_, problem = f.service.Verify(context.Background(), "CR_missing")
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusNotFound, problem.Problem.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	pending := f.createDuel(t)
	cancelled, problem := f.service.Cancel(context.Background(), pending.Id)
	require.Nil(t, problem)
	assert.Equal(t, model.DuelCancelled, cancelled.Status)
	assert.Equal(t, testNow, *cancelled.CompletedAt)

	accepted := f.acceptedDuel(t)
	cancelled, problem = f.service.Cancel(context.Background(), accepted.Id)
	require.Nil(t, problem)
	assert.Equal(t, model.DuelCancelled, cancelled.Status)
	assert.False(t, cancelled.Watching)
	assert.False(t, f.watcher.isWatching(accepted.Id))

	_, problem = f.service.Cancel(context.Background(), accepted.Id)
	require.NotNil(t, problem)
	assert.Equal(t, duelInvalidState, problem.Problem.Code)

	_, problem = f.service.Cancel(context.Background(), "CR_missing")
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusNotFound, problem.Problem.Status)

	assert.Equal(t, []EventType{EventCreated, EventCancelled, EventCreated, EventAccepted, EventCancelled}, f.publisher.types())
}

func TestComplete_IgnoresResolvedDuels(t *testing.T) {
	f := newFixture(t)
	duel := f.acceptedDuel(t)
	_, problem := f.service.Cancel(context.Background(), duel.Id)
	require.Nil(t, problem)

	err := f.service.Complete(context.Background(), duel.Id, reconcile.Outcome{Kind: reconcile.Decided, WinnerTag: creatorTag})
	assert.NoError(t, err)

	stored, err := f.repo.Get(context.Background(), duel.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DuelCancelled, stored.Status)
	assert.Nil(t, stored.WinnerTag)
}

func TestComplete_UnknownDuel(t *testing.T) {
	f := newFixture(t)

	err := f.service.Complete(context.Background(), "CR_missing", reconcile.Outcome{Kind: reconcile.Decided})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	duel := f.acceptedDuel(t)

	require.NoError(t, f.service.Expire(context.Background(), duel.Id))
	stored, err := f.repo.Get(context.Background(), duel.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DuelCancelled, stored.Status)
	assert.False(t, stored.Watching)

	require.NoError(t, f.service.Expire(context.Background(), duel.Id))
	require.NoError(t, f.service.Expire(context.Background(), "CR_missing"))
	assert.Equal(t, []EventType{EventCreated, EventAccepted, EventExpired}, f.publisher.types())
}

func TestExpire_LeavesPendingDuelsAlone(t *testing.T) {
	f := newFixture(t)
	duel := f.createDuel(t)

	require.NoError(t, f.service.Expire(context.Background(), duel.Id))
	stored, err := f.repo.Get(context.Background(), duel.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DuelPending, stored.Status)
}

func TestRehydrate(t *testing.T) {
	f := newFixture(t)
	overdue := f.acceptedDuel(t)
	f.now = testNow.Add(20 * time.Minute)
	fresh := f.acceptedDuel(t)
	f.createDuel(t)

	f.watcher.watched = map[string]model.Duel{}
	f.now = testNow.Add(40 * time.Minute)

	resumed, expired, err := f.service.Rehydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	assert.Equal(t, 1, expired)

	assert.True(t, f.watcher.isWatching(fresh.Id))
	assert.False(t, f.watcher.isWatching(overdue.Id))

	stored, err := f.repo.Get(context.Background(), overdue.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DuelCancelled, stored.Status)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	first := f.createDuel(t)
	f.now = testNow.Add(time.Minute)
	second := f.acceptedDuel(t)

	duels, total, problem := f.service.List(context.Background(), ListFilter{})
	require.Nil(t, problem)
	assert.Equal(t, int64(2), total)
	require.Len(t, duels, 2)
	assert.Equal(t, second.Id, duels[0].Id)
	assert.Equal(t, first.Id, duels[1].Id)

	duels, total, problem = f.service.List(context.Background(), ListFilter{PlayerTag: "opponent1"})
	require.Nil(t, problem)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, second.Id, duels[0].Id)
}

func TestWagerAmount_UnmarshalJSON(t *testing.T) {
	var req CreateDuelRequest
	require.NoError(t, json.Unmarshal([]byte(`{"wagerAmount": 1.25}`), &req))
	assert.Equal(t, WagerAmount("1.25"), req.WagerAmount)

	require.NoError(t, json.Unmarshal([]byte(`{"wagerAmount": " 3 "}`), &req))
	assert.Equal(t, WagerAmount("3"), req.WagerAmount)

	require.NoError(t, json.Unmarshal([]byte(`{"wagerAmount": null}`), &req))
	assert.Equal(t, WagerAmount(""), req.WagerAmount)
}
