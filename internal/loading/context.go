package loading

import "context"

// Context plumbing for consumers. The application wires its Orchestrator
// into the context once at the root; descendant code reads it back with
// FromContext or MustFromContext instead of threading the pointer through
// every call site.

type ctxKey struct{}

// NewContext returns a context carrying the orchestrator.
func NewContext(ctx context.Context, o *Orchestrator) context.Context {
	return context.WithValue(ctx, ctxKey{}, o)
}

// FromContext returns the orchestrator wired into ctx, if any.
func FromContext(ctx context.Context) (*Orchestrator, bool) {
	o, ok := ctx.Value(ctxKey{}).(*Orchestrator)
	return o, ok
}

// MustFromContext returns the orchestrator wired into ctx and panics when
// there is none. Reading loading state without the root having called
// NewContext is a programming error and fails loudly at the point of
// access rather than degrading.
func MustFromContext(ctx context.Context) *Orchestrator {
	o, ok := FromContext(ctx)
	if !ok {
		panic("loading: no Orchestrator in context; the application root must install one with loading.NewContext before loading state is read")
	}
	return o
}
