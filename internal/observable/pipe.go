package observable

import "context"

// Piped is the restricted view of a Container handed to dependents. It can
// subscribe, unsubscribe and reset, but cannot push values or drop every
// subscriber at once.
type Piped interface {
	Subscribe(fn Callback, opts ...SubscribeOption)
	Unsubscribe(key string)
	Reset(ctx context.Context)
}

// piped shares the container by pointer; it holds no state of its own.
type piped struct {
	c *Container
}

func (p piped) Subscribe(fn Callback, opts ...SubscribeOption) { p.c.Subscribe(fn, opts...) }
func (p piped) Unsubscribe(key string) { p.c.Unsubscribe(key) }
func (p piped) Reset(ctx context.Context) { p.c.Reset(ctx) }

// Pipe returns the restricted view of c.
func (c *Container) Pipe() Piped {
	return piped{c: c}
}
