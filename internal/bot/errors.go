package bot

import (
	"errors"

	"github.com/kjannette/stockbot/internal/external"
	"github.com/kjannette/stockbot/internal/repository"
)

// ErrorKind is the closed set of failure classes the bot reacts to.
type ErrorKind int

const (
	KindUnclassified ErrorKind = iota
	KindProviderUnavailable
	KindConstraintViolation
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindConstraintViolation:
		return "constraint_violation"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unclassified"
	}
}

// Classify maps an error onto its kind by the sentinel it wraps. A provider
// answer that cannot be used stays unclassified; only values the bot itself
// rejects count as invalid input.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, external.ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.Is(err, repository.ErrDuplicateKey):
		return KindConstraintViolation
	case errors.Is(err, repository.ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindUnclassified
	}
}
