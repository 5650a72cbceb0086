package image

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownModel indicates that no provider is registered for a model id.
var ErrUnknownModel = errors.New("image: unknown model id")

// Registry maps model ids to the provider that serves them.
type Registry struct {
	generators map[string]Generator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: map[string]Generator{}}
}

// Register binds a model id to a provider, replacing any previous binding.
func (r *Registry) Register(modelID string, gen Generator) {
	r.generators[modelID] = gen
}

// Resolve returns the provider serving a model id.
func (r *Registry) Resolve(modelID string) (Generator, error) {
	gen, ok := r.generators[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	return gen, nil
}

// Models lists the registered model ids in stable order.
func (r *Registry) Models() []string {
	ids := make([]string, 0, len(r.generators))
	for id := range r.generators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
