package research

import (
	"context"
	"errors"

	"github.com/yt110010111/market-analysis-LLM/pkg/ai"
	"github.com/yt110010111/market-analysis-LLM/pkg/loader"
)

var (
	// ErrTransportFailure covers unreachable, failing or timed out
	// collaborators: the model, search providers and web pages.
	ErrTransportFailure = errors.New("transport failure")
	// ErrParseFailure means a model answer could not be turned into data.
	ErrParseFailure = errors.New("parse failure")
	// ErrEmptyInput means there was nothing to work with.
	ErrEmptyInput = errors.New("empty input")
	// ErrBudgetExhausted means the iteration budget ran out before the
	// graph was judged sufficient.
	ErrBudgetExhausted = errors.New("iteration budget exhausted")
)

// Classify maps collaborator errors onto the sentinels above. Errors that
// already wrap a sentinel, and unknown errors, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrTransportFailure, ErrParseFailure, ErrEmptyInput, ErrBudgetExhausted} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var ce *ai.CompletionError
	var pf *ai.ParseFailure
	var fe *loader.FetchError
	switch {
	case errors.As(err, &pf):
		return errors.Join(ErrParseFailure, err)
	case errors.As(err, &ce), errors.As(err, &fe):
		return errors.Join(ErrTransportFailure, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrTransportFailure, err)
	}
	return err
}
