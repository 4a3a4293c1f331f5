package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dasmlab/aarogya/pkg/catalog"
)

// DefaultMaxLength caps the output length requested from a translation handle.
const DefaultMaxLength = 512

// Handle is a translation resource bound to exactly one direction.
// Handles are created lazily by the Registry and reused for the process lifetime.
// Implementations may hold processes or connections; if they implement
// io.Closer the Registry closes them on shutdown.
type Handle interface {
	// Translate converts text along the handle's direction, producing at most
	// maxLength output units.
	Translate(ctx context.Context, text string, maxLength int) (string, error)
}

// HandleFunc adapts a function to Handle.
type HandleFunc func(ctx context.Context, text string, maxLength int) (string, error)

// Translate calls f.
func (f HandleFunc) Translate(ctx context.Context, text string, maxLength int) (string, error) {
	return f(ctx, text, maxLength)
}

// Factory instantiates a handle for one direction. model is the translation
// model configured for the direction in the catalog. Instantiation may be
// expensive (model load, process start).
type Factory func(ctx context.Context, dir catalog.Direction, model string) (Handle, error)

// ErrUnknownEngine is returned when an engine name cannot be resolved.
var ErrUnknownEngine = errors.New("unknown translation engine")

// ErrClosed is returned by handles and registries used after Close.
var ErrClosed = errors.New("translator closed")

// UnsupportedDirectionError reports a direction missing from the catalog.
// It is a configuration error, not a transient failure.
type UnsupportedDirectionError struct {
	Direction catalog.Direction
}

func (e *UnsupportedDirectionError) Error() string {
	return fmt.Sprintf("translation %s->%s not configured", e.Direction.Source, e.Direction.Target)
}

// TranslationFailedError wraps an engine failure for one direction.
type TranslationFailedError struct {
	Direction catalog.Direction
	Cause     error
}

func (e *TranslationFailedError) Error() string {
	return fmt.Sprintf("translation %s failed: %v", e.Direction, e.Cause)
}

func (e *TranslationFailedError) Unwrap() error {
	return e.Cause
}
