package article

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when an article does not exist.
	ErrNotFound = errors.New("article not found")
	// ErrDiscarded is returned when a finished result was dropped instead of persisted.
	ErrDiscarded = errors.New("result discarded")
)

// ValidationError reports a malformed request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigurationError reports a missing or malformed provider key.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not configured: %s", e.Provider, e.Reason)
}

// GenerationError reports a failed text generation. The whole request fails with it.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("text generation with %s failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError reports a store failure after generation succeeded.
// Callers retry the write; generation is never repeated for it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting article (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SlotFailure describes an image slot that produced no image.
type SlotFailure struct {
	Slot      int    `json:"slot"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

// PartialImageFailure lists the image slots that failed for an otherwise usable article.
// It is informational and is not returned as an error.
type PartialImageFailure struct {
	Requested int           `json:"requested"`
	Failed    []SlotFailure `json:"failed"`
}

func (p *PartialImageFailure) Error() string {
	return fmt.Sprintf("%d of %d images unavailable", len(p.Failed), p.Requested)
}

// Slots returns the failed slot indexes in ascending order.
func (p *PartialImageFailure) Slots() []int {
	if p == nil {
		return nil
	}
	slots := make([]int, len(p.Failed))
	for i, f := range p.Failed {
		slots[i] = f.Slot
	}
	sort.Ints(slots)
	return slots
}
