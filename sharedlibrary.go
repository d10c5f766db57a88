package sharedlibrary

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// backend is the platform loader contract. Exactly one implementation is
// compiled in per target (see backend_unix.go and backend_windows.go); it
// is an interface rather than build-tagged free functions so tests can
// substitute a stub.
type backend interface {
	load(path string) (uintptr, error)
	unload(handle uintptr) error
	symbol(handle uintptr, name string) (uintptr, error)
}

// loadState tracks the one-time-load guard. The zero value is stateUnloaded.
type loadState uint8

const (
	stateUnloaded loadState = iota
	stateLoading
	stateLoaded
	stateFailed
)

// libState holds the path, backend and mutable handle state. It is
// allocated separately from Library so the finalizer installed on a Library
// can actually run: cond necessarily points back into the struct owning the
// mutex, and a finalizer never fires on an object that is part of a
// reference cycle with itself. The Library is cycle-free; only this inner
// state is self-referential, and it carries no finalizer.
type libState struct {
	path    string
	backend backend

	mu      sync.Mutex
	cond    *sync.Cond
	state   loadState
	handle  uintptr
	loadErr error
}

func newLibState(path string, b backend) *libState {
	s := &libState{path: path, backend: b}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Library wraps a native shared library (.so/.dylib on POSIX, .dll on
// Windows) behind a uniform load, unload and symbol-resolution API.
//
// A Library owns its native handle exclusively and must not be copied; use
// Move to transfer ownership between handles. All methods are safe for
// concurrent use except where noted on Unload and Move.
type Library struct {
	immediate bool
	s         *libState
}

// Option configures a Library during construction.
type Option func(*Library) error

// WithImmediateLoad makes New load the library before returning instead of
// deferring the load to the first symbol request.
func WithImmediateLoad() Option {
	return func(l *Library) error {
		l.immediate = true
		return nil
	}
}

// New constructs a Library for the shared library at path, using the native
// loader of the current platform. How the path is interpreted (absolute,
// relative, or bare module name) is up to that loader. The library is not
// loaded until the first LoadNow, EnsureLoaded or symbol request unless
// WithImmediateLoad is given.
func New(path string, opts ...Option) (*Library, error) {
	if path == "" {
		return nil, errors.New("library path cannot be empty")
	}
	l := &Library{s: newLibState(path, platformBackend())}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, errors.Wrap(err, "failed to apply library option")
		}
	}
	// Release the native handle even if the owner never calls Close. The
	// closure holds the inner state, not the Library, so the Library stays
	// collectable.
	s := l.s
	runtime.SetFinalizer(l, func(*Library) { _ = s.unload() })
	if l.immediate {
		if err := l.LoadNow(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Open is shorthand for New(path, WithImmediateLoad()).
func Open(path string, opts ...Option) (*Library, error) {
	return New(path, append(opts, WithImmediateLoad())...)
}

// Path returns the library path given at construction.
func (l *Library) Path() string {
	return l.s.path
}

// IsLoaded reports whether the library is currently loaded.
func (l *Library) IsLoaded() bool {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateLoaded
}

// NativeHandle returns the opaque platform handle (an HMODULE on Windows,
// the dlopen handle on POSIX) for callers that need direct platform
// interop. It is 0 when the library is not loaded.
func (l *Library) NativeHandle() uintptr {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// LoadNow loads the library if it is not already loaded. Unlike
// EnsureLoaded it retries after a previously failed attempt. On failure the
// handle remains unloaded; there is no partially loaded state.
func (l *Library) LoadNow() error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == stateLoading {
		s.cond.Wait()
	}
	if s.state == stateLoaded {
		return nil
	}
	return s.loadLocked()
}

// EnsureLoaded loads the library at most once across concurrent callers.
// The first caller performs the platform load; every other caller blocks
// until that attempt finishes and then observes its outcome. A failed
// attempt is sticky: later EnsureLoaded calls return the recorded error
// without touching the platform loader again. Call LoadNow to retry, or
// Unload to re-arm lazy loading.
func (l *Library) EnsureLoaded() error {
	return l.s.ensureLoaded()
}

func (s *libState) ensureLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == stateLoading {
		s.cond.Wait()
	}
	switch s.state {
	case stateLoaded:
		return nil
	case stateFailed:
		return s.loadErr
	}
	return s.loadLocked()
}

// loadLocked performs the platform load. The caller must hold s.mu with the
// state at stateUnloaded or stateFailed. The lock is released for the
// duration of the platform call so that IsLoaded and NativeHandle stay
// non-blocking; waiters are parked on s.cond until the outcome is recorded.
func (s *libState) loadLocked() error {
	s.state = stateLoading
	s.loadErr = nil
	s.mu.Unlock()
	handle, err := s.backend.load(s.path)
	s.mu.Lock()
	if err != nil || handle == 0 {
		if err == nil {
			err = errors.New("platform loader returned a null handle")
		}
		s.handle = 0
		s.state = stateFailed
		s.loadErr = errors.Wrapf(err, "failed to load shared library: %s", s.path)
		s.cond.Broadcast()
		return s.loadErr
	}
	s.handle = handle
	s.state = stateLoaded
	s.cond.Broadcast()
	return nil
}

// Unload releases the native handle if the library is loaded. It is
// idempotent, and it also clears the sticky error left behind by a failed
// load so that a later LoadNow or EnsureLoaded starts fresh.
//
// Unload must not be called concurrently with in-flight Symbol, Register or
// BatchLoad calls: the platform loaders give no protection against a lookup
// racing an unload, and neither does this package.
func (l *Library) Unload() error {
	return l.s.unload()
}

func (s *libState) unload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == stateLoading {
		s.cond.Wait()
	}
	if s.state == stateLoaded {
		if err := s.backend.unload(s.handle); err != nil {
			return errors.Wrapf(err, "failed to unload shared library: %s", s.path)
		}
	}
	s.handle = 0
	s.state = stateUnloaded
	s.loadErr = nil
	return nil
}

// Close unloads the library and drops the finalizer installed by New.
func (l *Library) Close() error {
	runtime.SetFinalizer(l, nil)
	return l.Unload()
}

// Move transfers ownership of the native handle and load state to a freshly
// returned Library, leaving the receiver unloaded with a zero handle. The
// native handle is never shared between two live handles. Move must not
// race with other calls on the receiver.
func (l *Library) Move() *Library {
	s := l.s
	s.mu.Lock()
	for s.state == stateLoading {
		s.cond.Wait()
	}
	ns := newLibState(s.path, s.backend)
	ns.state = s.state
	ns.handle = s.handle
	ns.loadErr = s.loadErr
	s.handle = 0
	s.state = stateUnloaded
	s.loadErr = nil
	s.mu.Unlock()

	dst := &Library{immediate: l.immediate, s: ns}
	runtime.SetFinalizer(dst, func(*Library) { _ = ns.unload() })
	return dst
}
