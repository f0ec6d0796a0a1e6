// Package registry keeps named containers so independent components can
// find the same container, or only its piped view, by name.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/observable"
)

var (
	// ErrNotFound is returned when no container is registered under a name.
	ErrNotFound = errors.New("container not found")

	// ErrExists is returned by Register when the name is taken.
	ErrExists = errors.New("container already registered")
)

// Registry maps names to containers. Entries never expire.
type Registry struct {
	cache *gocache.Cache
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Register stores c under c.Name(). Unnamed containers are rejected.
func (r *Registry) Register(ctx context.Context, c *observable.Container) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("register: container has no name")
	}
	if err := r.cache.Add(name, c, gocache.NoExpiration); err != nil {
		return fmt.Errorf("register %q: %w", name, ErrExists)
	}
	log.Debug(log.CatRegistry, "registered", "name", name)
	return nil
}

// Create builds a container named name with opts and registers it.
func (r *Registry) Create(ctx context.Context, name string, initial observable.Value, opts ...observable.Option) (*observable.Container, error) {
	opts = append(opts[:len(opts):len(opts)], observable.WithName(name))
	c := observable.New(initial, opts...)
	if err := r.Register(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the full container registered under name.
func (r *Registry) Get(ctx context.Context, name string) (*observable.Container, error) {
	value, found := r.cache.Get(name)
	if !found {
		return nil, fmt.Errorf("get %q: %w", name, ErrNotFound)
	}

	c, ok := value.(*observable.Container)
	if !ok {
		log.Error(log.CatRegistry, "wrong type assertion when getting container", "name", name)
		return nil, fmt.Errorf("get %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// Piped returns only the restricted view of the named container.
func (r *Registry) Piped(ctx context.Context, name string) (observable.Piped, error) {
	c, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Pipe(), nil
}

// Remove disposes the named container's subscribers and forgets it.
// Removing an unknown name is a no-op.
func (r *Registry) Remove(ctx context.Context, name string) {
	if c, err := r.Get(ctx, name); err == nil {
		c.Dispose()
	}
	r.cache.Delete(name)
	log.Debug(log.CatRegistry, "removed", "name", name)
}

// Names returns registered names in lexical order.
func (r *Registry) Names() []string {
	items := r.cache.Items()
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush disposes and forgets every container.
func (r *Registry) Flush(ctx context.Context) {
	for _, name := range r.Names() {
		r.Remove(ctx, name)
	}
	r.cache.Flush()
}
