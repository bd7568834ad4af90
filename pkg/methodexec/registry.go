// Package methodexec implements the Method Executor: a lazy-loading
// class/method registry that invokes calibrated methods with
// declarative argument routing.
//
// Grounded on tarsy's pkg/mcp router (declarative per-target argument
// validation, a fast path for hot routes) and the lazy-instantiate-
// and-cache shape used throughout tarsy's registry-style types (load
// on first use, cache the instance, isolate failures per entry).
package methodexec

import (
	"errors"
	"fmt"
	"sync"
)

// Args is the kwargs bag passed to a method invocation.
type Args map[string]any

// Loader constructs a fresh instance of a class on first use. Loaders
// must be side-effect-isolated: a failing loader only poisons its own
// class, never another.
type Loader func() (any, error)

// MethodFunc is an injected or registered method implementation,
// given the class's live instance and the validated kwargs.
type MethodFunc func(instance any, args Args) (any, error)

// key identifies one (class, method) pair.
type key struct {
	class  string
	method string
}

// Registry is the Method Executor: it lazily instantiates classes,
// caches the instances, and dispatches to registered or injected
// method implementations. Safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	loaders map[string]Loader
	methods map[key]MethodFunc
	router  *ArgRouter

	instances map[string]any
	failed    map[string]error // classes whose loader has already failed; not retried within a run

	metrics Metrics
}

// NewRegistry returns an empty registry with the given ArgRouter. A
// nil router means no argument validation is performed (only used in
// tests).
func NewRegistry(router *ArgRouter) *Registry {
	return &Registry{
		loaders:   make(map[string]Loader),
		methods:   make(map[key]MethodFunc),
		instances: make(map[string]any),
		failed:    make(map[string]error),
		router:    router,
	}
}

// RegisterClass installs the loader for class. Re-registering a class
// before it has been instantiated replaces the loader; re-registering
// after instantiation is a no-op on the cached instance (the cache is
// append-only for the lifetime of a run, per §5).
func (r *Registry) RegisterClass(class string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[class] = loader
}

// InjectMethod installs fn as the implementation of (class, method),
// bypassing the class's own method dispatch. This is the hook for
// tests and hotfixes named in spec.md §4.4 — it does not require the
// class to have been registered via RegisterClass.
func (r *Registry) InjectMethod(class, method string, fn MethodFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[key{class, method}] = fn
}

// Execute invokes class.method(kwargs), lazily instantiating class on
// first use. A failing instantiation is isolated to class: the error
// is cached, future calls against the same class fail fast with the
// same error, but other classes are unaffected. If router is set,
// kwargs are validated against the (class, method) route before
// invocation.
func (r *Registry) Execute(class, method string, args Args) (any, error) {
	instance, err := r.instanceFor(class)
	if err != nil {
		return nil, err
	}

	if r.router != nil {
		fast, err := r.router.validate(class, method, args)
		r.mu.Lock()
		if fast {
			r.metrics.FastPathHits++
		} else {
			r.metrics.SlowPathHits++
		}
		if err != nil {
			r.metrics.ValidationErrors++
			if errors.Is(err, ErrArgumentValidation) {
				r.metrics.SilentDropsBlocked++
			}
		}
		r.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	fn, ok := r.methods[key{class, method}]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, class, method)
	}

	result, err := fn(instance, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvocation, class, method, err)
	}
	return result, nil
}

// instanceFor returns the cached instance for class, instantiating it
// via the registered loader on first call.
func (r *Registry) instanceFor(class string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[class]; ok {
		return inst, nil
	}
	if failErr, ok := r.failed[class]; ok {
		return nil, failErr
	}

	loader, ok := r.loaders[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}

	inst, err := loader()
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrInstantiation, class, err)
		r.failed[class] = wrapped
		return nil, wrapped
	}
	r.instances[class] = inst
	return inst, nil
}

// Metrics returns a snapshot of the registry's invocation counters.
func (r *Registry) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Metrics tracks ArgRouter hit/miss counters named in spec.md §4.4.
type Metrics struct {
	FastPathHits       int
	SlowPathHits       int
	ValidationErrors   int
	SilentDropsBlocked int
}
