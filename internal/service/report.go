package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ItemFailure records why one debt or expense in a batch was not processed
type ItemFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// failures collects per-item errors of a batch without aborting it
type failures struct {
	Failures []ItemFailure `json:"failures,omitempty"`
	errs     []error
}

func (f *failures) add(id uuid.UUID, err error) {
	f.Failures = append(f.Failures, ItemFailure{ID: id, Error: err.Error()})
	f.errs = append(f.errs, fmt.Errorf("%s: %w", id, err))
}

// Err joins every item error, nil when the batch was clean
func (f *failures) Err() error {
	return errors.Join(f.errs...)
}
