package translate

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/sirupsen/logrus"
)

// DefaultLoadTimeout bounds how long one handle instantiation may take.
const DefaultLoadTimeout = 10 * time.Minute

// Registry translates text between catalog languages, lazily creating and
// caching one Handle per direction. It is safe for concurrent use.
//
// At most one instantiation runs per direction at a time; concurrent callers
// for the same uncached direction wait for it. Once a handle is cached,
// lookups take no lock.
type Registry struct {
	catalog     *catalog.Catalog
	factory     Factory
	maxLength   int
	loadTimeout time.Duration
	logger      *logrus.Logger

	handles sync.Map // catalog.Direction -> *handleEntry

	// closeMu orders handle resolution against Close.
	closeMu sync.Mutex
	closed  bool
}

// handleEntry is resolved exactly once; ready is closed afterwards.
type handleEntry struct {
	ready  chan struct{}
	handle Handle
	err    error
}

func (e *handleEntry) wait(ctx context.Context) (Handle, error) {
	select {
	case <-e.ready:
		return e.handle, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithMaxLength overrides DefaultMaxLength.
func WithMaxLength(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxLength = n
		}
	}
}

// WithLoadTimeout bounds a single handle instantiation.
func WithLoadTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.loadTimeout = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *logrus.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry over cat whose handles come from factory.
func NewRegistry(cat *catalog.Catalog, factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		catalog:     cat,
		factory:     factory,
		maxLength:   DefaultMaxLength,
		loadTimeout: DefaultLoadTimeout,
		logger:      logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Translate converts text from src to tgt.
//
// Empty text and src == tgt return text unchanged without touching any handle.
// A direction missing from the catalog yields *UnsupportedDirectionError; a
// handle that cannot be created or fails yields *TranslationFailedError.
// The result is whitespace-trimmed. Failures are never retried here.
func (r *Registry) Translate(ctx context.Context, text string, src, tgt catalog.Code) (string, error) {
	if text == "" {
		return text, nil
	}
	if src == tgt {
		return text, nil
	}

	dir := catalog.Direction{Source: src, Target: tgt}
	handle, err := r.getOrCreate(ctx, dir)
	if err != nil {
		return "", err
	}

	startTime := time.Now()
	out, err := handle.Translate(ctx, text, r.maxLength)
	recordTranslation(dir, time.Since(startTime), err == nil)
	if err != nil {
		return "", &TranslationFailedError{Direction: dir, Cause: err}
	}

	return strings.TrimSpace(out), nil
}

// getOrCreate returns the cached handle for dir, instantiating it on first use.
func (r *Registry) getOrCreate(ctx context.Context, dir catalog.Direction) (Handle, error) {
	model, ok := r.catalog.Model(dir)
	if !ok {
		return nil, &UnsupportedDirectionError{Direction: dir}
	}

	if v, ok := r.handles.Load(dir); ok {
		return r.await(ctx, dir, v.(*handleEntry))
	}
	if r.isClosed() {
		return nil, &TranslationFailedError{Direction: dir, Cause: ErrClosed}
	}

	entry := &handleEntry{ready: make(chan struct{})}
	if v, loaded := r.handles.LoadOrStore(dir, entry); loaded {
		return r.await(ctx, dir, v.(*handleEntry))
	}

	// The handle outlives the request that triggered it, so it loads under a
	// context that ignores the caller's cancellation. Every caller, this one
	// included, stops waiting on its own context.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
	go func() {
		defer cancel()
		r.instantiate(loadCtx, dir, model, entry)
	}()
	return r.await(ctx, dir, entry)
}

// instantiate resolves entry with a new handle for dir.
func (r *Registry) instantiate(ctx context.Context, dir catalog.Direction, model string, entry *handleEntry) {
	r.logger.WithFields(logrus.Fields{
		"direction": dir.String(),
		"model":     model,
	}).Info("Loading translator")

	startTime := time.Now()
	handle, err := r.factory(ctx, dir, model)
	if err == nil && handle == nil {
		err = errors.New("factory returned no handle")
	}
	duration := time.Since(startTime)
	recordInstantiation(dir, duration, err == nil)

	r.closeMu.Lock()
	if err == nil && r.closed {
		if c, ok := handle.(io.Closer); ok {
			_ = c.Close()
		}
		translatorHandlesLoaded.Dec()
		handle, err = nil, ErrClosed
	}
	if err != nil {
		// Drop the failed entry so a later request can try again.
		r.handles.CompareAndDelete(dir, entry)
		entry.err = err
		close(entry.ready)
		r.closeMu.Unlock()

		r.logger.WithError(err).WithFields(logrus.Fields{
			"direction": dir.String(),
			"model":     model,
		}).Warn("Failed to load translator")
		return
	}

	entry.handle = handle
	close(entry.ready)
	r.closeMu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"direction":   dir.String(),
		"duration_ms": duration.Milliseconds(),
	}).Info("Translator loaded")
}

func (r *Registry) await(ctx context.Context, dir catalog.Direction, entry *handleEntry) (Handle, error) {
	handle, err := entry.wait(ctx)
	if err != nil {
		return nil, &TranslationFailedError{Direction: dir, Cause: err}
	}
	return handle, nil
}

// Preload instantiates handles for dirs ahead of traffic. All directions are
// attempted; the first error is returned.
func (r *Registry) Preload(ctx context.Context, dirs ...catalog.Direction) error {
	var firstErr error
	for _, dir := range dirs {
		if _, err := r.getOrCreate(ctx, dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Loaded returns the directions with a ready handle, sorted.
func (r *Registry) Loaded() []catalog.Direction {
	var dirs []catalog.Direction
	r.handles.Range(func(key, value any) bool {
		entry := value.(*handleEntry)
		select {
		case <-entry.ready:
			if entry.err == nil {
				dirs = append(dirs, key.(catalog.Direction))
			}
		default:
		}
		return true
	})
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].String() < dirs[j].String() })
	return dirs
}

func (r *Registry) isClosed() bool {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	return r.closed
}

// Close releases every cached handle that implements io.Closer. Handles
// still loading are released as soon as they resolve, and no new handles
// are created afterwards.
func (r *Registry) Close() error {
	r.closeMu.Lock()
	r.closed = true
	r.closeMu.Unlock()

	var errs []error
	r.handles.Range(func(key, value any) bool {
		entry := value.(*handleEntry)
		select {
		case <-entry.ready:
		default:
			return true
		}
		r.handles.Delete(key)
		if entry.err != nil {
			return true
		}
		translatorHandlesLoaded.Dec()
		if c, ok := entry.handle.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})
	return errors.Join(errs...)
}
