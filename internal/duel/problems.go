package duel

import (
	"net/http"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/reject"
)

const (
	duelNotFound       = "error.duel.not-found"
	duelInvalidState   = "error.duel.invalid-state"
	duelInvalidPlayer  = "error.duel.invalid-player"
	duelOwnDuel        = "error.duel.own-duel"
	duelNameMismatch   = "error.duel.player-name-mismatch"
	duelBattleNotFound = "error.duel.battle-not-found"
	duelDraw           = "error.duel.draw"
	duelResultConflict = "error.duel.result-conflict"
)

func notFoundProblem(cause error) *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle("Duel not found").
		WithStatus(http.StatusNotFound).
		WithCode(duelNotFound).
		Build(), cause)
}

func invalidStateProblem(title string, cause error) *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle(title).
		WithStatus(http.StatusBadRequest).
		WithCode(duelInvalidState).
		Build(), cause)
}

func validationProblem(details []reject.ProblemDetail) *reject.ProblemWithTrace {
	return reject.WithTrace(reject.RequestValidationProblem(details), nil)
}

func invalidPlayerProblem(cause error) *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle("Invalid Clash Royale player tag").
		WithStatus(http.StatusBadRequest).
		WithCode(duelInvalidPlayer).
		Build(), cause)
}

func ownDuelProblem() *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle("Cannot accept your own duel").
		WithStatus(http.StatusBadRequest).
		WithCode(duelOwnDuel).
		Build(), nil)
}

func nameMismatchProblem() *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle("Player name doesn't match the provided tag").
		WithStatus(http.StatusBadRequest).
		WithCode(duelNameMismatch).
		Build(), nil)
}

func notYetResolvedProblem() *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle("Battle not found yet").
		WithStatus(http.StatusNotFound).
		WithCode(duelBattleNotFound).
		WithDetail("No battle between the two players has been reported since the duel was accepted").
		Retryable().
		Build(), nil)
}

func drawProblem() *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle("Battle ended in a draw").
		WithStatus(http.StatusConflict).
		WithCode(duelDraw).
		WithDetail("Equal crowns do not decide a winner, play again before the deadline").
		Retryable().
		Build(), nil)
}

func conflictProblem(cause error) *reject.ProblemWithTrace {
	return reject.WithTrace(reject.NewProblem().
		WithTitle("Battle logs disagree").
		WithStatus(http.StatusConflict).
		WithCode(duelResultConflict).
		WithDetail(cause.Error()).
		Retryable().
		Build(), cause)
}

func upstreamProblem(cause error) *reject.ProblemWithTrace {
	return reject.WithTrace(reject.UpstreamProblem(cause), cause)
}
