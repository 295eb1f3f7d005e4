package reject

import "fmt"

// ProblemWithTrace pairs the client facing problem with the error that caused it.
type ProblemWithTrace struct {
	Problem Problem
	Cause   error
}

func (p *ProblemWithTrace) Error() string {
	if p.Cause == nil {
		return p.Problem.Title
	}
	return fmt.Sprintf("%s: %v", p.Problem.Title, p.Cause)
}

func (p *ProblemWithTrace) Unwrap() error {
	return p.Cause
}

func WithTrace(problem Problem, cause error) *ProblemWithTrace {
	return &ProblemWithTrace{Problem: problem, Cause: cause}
}
