package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrors_AreDistinctAndWrappable(t *testing.T) {
	all := []error{
		ErrNoSource, ErrInvalidBase64, ErrInvalidURL, ErrFetchFailed, ErrNotPDF,
		ErrInvalidOptions, ErrTooLarge, ErrConversionFailed, ErrNoOutput, ErrTimeout,
		ErrInvalidAPIKey, ErrTokenStoreNotReady,
	}
	seen := map[error]bool{}
	for _, err := range all {
		if err == nil || err.Error() == "" {
			t.Fatalf("domain errors must be non-nil with a message")
		}
		if seen[err] {
			t.Fatalf("duplicate domain error %v", err)
		}
		seen[err] = true

		wrapped := fmt.Errorf("context: %w", err)
		if !errors.Is(wrapped, err) {
			t.Fatalf("expected errors.Is to match %v", err)
		}
	}
}
