// Package provider defines the inference provider contract and its two
// implementations: a local engine hosting weights from disk and a remote
// HTTP inference endpoint.
//
// A provider moves through the states not_loaded → loading → loaded (or
// error). Implementations must be safe for concurrent Generate calls, or
// internalise their own serialisation if the underlying engine cannot run
// generations concurrently.
package provider

import (
	"context"
	"errors"

	"github.com/example/lingoflow/internal/prompt"
)

// State is the provider lifecycle state.
type State string

const (
	StateNotLoaded State = "not_loaded"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateError     State = "error"
)

// Mode reports where inference actually runs.
type Mode string

const (
	ModeGPU    Mode = "gpu"
	ModeCPU    Mode = "cpu"
	ModeRemote Mode = "remote"
)

// ErrLoadInProgress is returned by Load when another load is already
// running; the caller observes "loading" and must not wait behind it.
var ErrLoadInProgress = errors.New("provider: load already in progress")

// Provider is the abstraction over any inference backend.
type Provider interface {
	// Load initialises the backend. Idempotent when already loaded; a
	// concurrent second call fails fast with ErrLoadInProgress.
	Load(ctx context.Context) error

	// Generate produces text for the prompt. Fails with a MODEL_NOT_LOADED
	// carrier when the provider is not loaded and with INTERNAL_ERROR on
	// inference failure.
	Generate(ctx context.Context, p prompt.Prompt, params GenParams) (string, error)

	// Unload releases all resources and returns the provider to
	// not_loaded. Safe to call repeatedly.
	Unload()

	State() State
	ExecutionMode() Mode

	// Progress reports load progress in [0,100].
	Progress() float64

	// ErrorMessage returns the last load/inference error, if any.
	ErrorMessage() string
}

// ProgressReporter is implemented by providers that can push progressive
// load state to an observer.
type ProgressReporter interface {
	SetProgressCallback(fn func(pct float64, message string))
}
