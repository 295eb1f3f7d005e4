package reject

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	genericUnexpectedError string = "error.generic.unexpected"
	cannotParseParams      string = "error.generic.cannot-parse-params"
	invalidRequest         string = "error.generic.invalid-request-payload"
	cannotParseBody        string = "error.generic.cannot-parse-payload"
	genericNotFound        string = "error.generic.not-found"
	upstreamUnavailable    string = "error.generic.upstream-unavailable"
)

// RequestValidationProblem lists the offending fields. A single failure
// becomes the title so clients reading only the message still see it.
func RequestValidationProblem(details []ProblemDetail) Problem {
	p := NewProblem().
		WithTitle("Missing required parameters").
		WithStatus(http.StatusBadRequest).
		WithCode(invalidRequest).
		WithErrors(details)
	if len(details) == 1 {
		p.WithTitle(details[0].Info)
	}
	return p.Build()
}

func RequestParamsProblem() Problem {
	return NewProblem().
		WithTitle("Invalid request parameters").
		WithStatus(http.StatusBadRequest).
		WithCode(cannotParseParams).
		Build()
}

func BodyParseProblem() Problem {
	return NewProblem().
		WithTitle("Cannot read payload").
		WithStatus(http.StatusBadRequest).
		WithCode(cannotParseBody).
		Build()
}

func NotFoundProblem() Problem {
	return NewProblem().
		WithTitle("Record not found").
		WithStatus(http.StatusNotFound).
		WithCode(genericNotFound).
		Build()
}

// UpstreamProblem covers store and provider transport failures.
func UpstreamProblem(err error) Problem {
	log.Error().Err(err).Msg("Upstream dependency failed while handling request")
	return NewProblem().
		WithTitle("Upstream service unavailable").
		WithStatus(http.StatusInternalServerError).
		WithCode(upstreamUnavailable).
		Build()
}

func UnexpectedProblem(err error) Problem {
	log.Warn().Err(err).Msg("Unexpected error while handling request")
	return NewProblem().
		WithTitle("Unexpected error").
		WithStatus(http.StatusInternalServerError).
		WithCode(genericUnexpectedError).
		Build()
}
