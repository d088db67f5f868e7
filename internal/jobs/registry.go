package jobs

import (
	"context"
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
)

// Processor performs the work for one job type. It may report progress at any
// point and returns the result payload stored on completion.
type Processor interface {
	Process(ctx context.Context, job *Job, progress *Progress) (JSONMap, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job *Job, progress *Progress) (JSONMap, error)

func (f ProcessorFunc) Process(ctx context.Context, job *Job, progress *Progress) (JSONMap, error) {
	return f(ctx, job, progress)
}

// Registry maps job types to processors. It is filled once at startup and read
// by the worker, so it carries no lock.
type Registry struct {
	processors map[Type]Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: map[Type]Processor{}}
}

// Register panics on a duplicate type.
func (r *Registry) Register(t Type, p Processor) {
	if _, exists := r.processors[t]; exists {
		panic(fmt.Sprintf("processor already registered for job type %q", t))
	}
	r.processors[t] = p
}

// Lookup returns ErrUnknownJobType when nothing is registered for t.
func (r *Registry) Lookup(t Type) (Processor, error) {
	p, ok := r.processors[t]
	if !ok || p == nil {
		return nil, errors.Wrapf(ErrUnknownJobType, "%q", t)
	}
	return p, nil
}

func (r *Registry) Types() []Type {
	out := make([]Type, 0, len(r.processors))
	for t := range r.processors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
