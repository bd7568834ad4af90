package methodexec

import "fmt"

// Route declares the kwarg contract for one (class, method) target:
// which keys are required, which are optional, and which are
// explicitly forbidden. Any kwarg not named in Required or Optional
// is implicitly forbidden — there is no "unknown but tolerated" kwarg.
type Route struct {
	Required  []string
	Optional  []string
	Forbidden []string
}

// allowed returns the set of keys this route will accept.
func (rt Route) allowed() map[string]bool {
	allowed := make(map[string]bool, len(rt.Required)+len(rt.Optional))
	for _, k := range rt.Required {
		allowed[k] = true
	}
	for _, k := range rt.Optional {
		allowed[k] = true
	}
	return allowed
}

// ArgRouter resolves caller-supplied kwargs against declared routes.
// A small fast-path table holds the routes for the hottest methods
// (spec.md §4.4: "~30 hottest methods"); anything else falls through
// to the general route map. Both tables are consulted the same way —
// the fast path only exists to make the hot-method case a single map
// lookup away from the router's entry point rather than two.
type ArgRouter struct {
	fastPath map[key]Route
	routes   map[key]Route
}

// NewArgRouter returns an empty router. Populate with RegisterRoute
// and RegisterFastPath before serving traffic.
func NewArgRouter() *ArgRouter {
	return &ArgRouter{
		fastPath: make(map[key]Route),
		routes:   make(map[key]Route),
	}
}

// RegisterRoute installs the kwarg contract for (class, method).
func (a *ArgRouter) RegisterRoute(class, method string, route Route) {
	a.routes[key{class, method}] = route
}

// RegisterFastPath installs (class, method) into the fast-path table,
// in addition to (not instead of) its general route. Intended for the
// ~30 hottest methods named in spec.md §4.4.
func (a *ArgRouter) RegisterFastPath(class, method string, route Route) {
	a.fastPath[key{class, method}] = route
	a.routes[key{class, method}] = route
}

// Validate checks args against the declared route for (class,
// method). Any key present in args that is not Required or Optional
// is a validation error — this is the single enforcement point that
// makes silent kwarg drops impossible. A route with no Required keys
// accepts an empty Args.
func (a *ArgRouter) Validate(class, method string, args Args) error {
	_, err := a.validate(class, method, args)
	return err
}

// validate is Validate's internal form, additionally reporting
// whether the fast-path table served the lookup, for Registry's
// fast/slow-path hit metrics.
func (a *ArgRouter) validate(class, method string, args Args) (fastPath bool, err error) {
	k := key{class, method}

	if route, ok := a.fastPath[k]; ok {
		return true, a.validateAgainst(class, method, route, args)
	}

	route, ok := a.routes[k]
	if !ok {
		// No declared route at all: treat as zero-arg, zero-tolerance —
		// any kwarg is unknown.
		route = Route{}
	}
	return false, a.validateAgainst(class, method, route, args)
}

func (a *ArgRouter) validateAgainst(class, method string, route Route, args Args) error {
	forbidden := make(map[string]bool, len(route.Forbidden))
	for _, k := range route.Forbidden {
		forbidden[k] = true
	}
	allowed := route.allowed()

	for k := range args {
		if forbidden[k] {
			return fmt.Errorf("%w: %s.%s: kwarg %q is forbidden", ErrArgumentValidation, class, method, k)
		}
		if !allowed[k] {
			return fmt.Errorf("%w: %s.%s: unknown kwarg %q", ErrArgumentValidation, class, method, k)
		}
	}
	for _, req := range route.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("%w: %s.%s: missing required kwarg %q", ErrArgumentValidation, class, method, req)
		}
	}
	return nil
}
