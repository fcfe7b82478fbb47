package queue

import "context"

// Handler is the contract a job type implements. It is given only the
// payload, never the claim, so it cannot observe or mutate queue columns.
// The returned value is JSON-marshaled to become the JobRun's
// result_summary.
type Handler func(ctx context.Context, payload []byte) (any, error)

// Registry is a process-lifetime mapping from job type to Handler. It is
// consulted only by the worker loop; the engine never inspects it.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a job type to a Handler, overwriting any prior binding.
func (r *Registry) Register(jobType string, h Handler) {
	r.handlers[jobType] = h
}

// Lookup returns the Handler bound to jobType, or (nil, false).
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}
