package analysis

import (
	"errors"
	"fmt"
)

var (
	ErrNoPrinciples = errors.New("no principles to evaluate")
	ErrNoSnippets   = errors.New("no code snippets to analyze")
	ErrNoCatalog    = errors.New("prompt catalog is required")

	ErrInvalidPrinciple   = errors.New("invalid principle label")
	ErrDuplicatePrinciple = errors.New("duplicate principle")
)

// UnitError reports the failure of one (principle, snippet, kind) unit.
type UnitError struct {
	Principle    Principle
	SnippetIndex int
	Kind         Kind
	Err          error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s of snippet %d for %s: %v", e.Kind, e.SnippetIndex, e.Principle, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }
