package biz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy_As(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name  string
		err   error
		match func(error) bool
	}{
		{"fetch", &FetchError{URL: "u", StatusCode: 404}, func(err error) bool {
			var e *FetchError
			return errors.As(err, &e) && e.StatusCode == 404
		}},
		{"domain", &DomainError{URL: "u", Host: "evil.com"}, func(err error) bool {
			var e *DomainError
			return errors.As(err, &e) && e.Host == "evil.com"
		}},
		{"extraction", &ExtractionError{URL: "u", Err: cause}, func(err error) bool {
			var e *ExtractionError
			return errors.As(err, &e)
		}},
		{"generation", &GenerationError{Provider: "p", Err: cause}, func(err error) bool {
			var e *GenerationError
			return errors.As(err, &e)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.match(wrapped))
		})
	}
}

func TestRetrievalError_WrapsCauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RetrievalError{Query: "q", Err: &IndexError{Op: "search", Collection: "c", Err: cause}}

	var ie *IndexError
	assert.True(t, errors.As(err, &ie))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
