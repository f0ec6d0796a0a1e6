// Package observable provides a keyed state container that notifies
// subscribers only when keys they depend on change.
//
// A Container holds one Value. Next merges an update into it and Overwrite
// replaces it; both then notify every subscriber whose dependency set
// intersects the keys of the update (Overwrite notifies everyone). Callbacks
// run synchronously on the updating goroutine, in subscription order, over a
// snapshot of the registry taken when the broadcast starts. A panicking
// callback is recovered and reported without stopping the broadcast.
package observable

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/pubsub"
	"github.com/zjrosen/observables/internal/tracing"
)

// Callback receives the full value after a qualifying update.
type Callback func(Value)

// Change describes one committed update on the Watch stream.
type Change struct {
	ID        uuid.UUID
	Keys      []string
	Value     Value
	Overwrite bool
}

type subscriber struct {
	key  string
	fn   Callback
	deps DependencySet
	seq  uint64
}

// Container is an observable keyed state record. The zero value is not
// usable; construct with New.
type Container struct {
	mu       sync.Mutex
	name     string
	value    Value
	initial  Value
	behavior bool
	subs     map[string]*subscriber
	seq      uint64
	version  uint64

	tracer     trace.Tracer
	onPanic    func(*CallbackError)
	bufferSize int
	changes    *pubsub.Broker[Change]
}

// New creates a container holding a copy of initial. A nil initial value
// starts the container empty.
func New(initial Value, opts ...Option) *Container {
	c := &Container{
		initial: initial.Clone(),
		value:   initial.Clone(),
		subs:    make(map[string]*subscriber),
		tracer:  noop.NewTracerProvider().Tracer(tracing.DefaultServiceName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bufferSize > 0 {
		c.changes = pubsub.NewBrokerWithBuffer[Change](c.bufferSize)
	} else {
		c.changes = pubsub.NewBroker[Change]()
	}
	return c
}

// Name returns the label given with WithName.
func (c *Container) Name() string {
	return c.name
}

// Value returns a shallow copy of the current record.
func (c *Container) Value() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value.Clone()
}

// Len returns the number of registered subscribers.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Keys returns subscriber ids in dispatch order.
func (c *Container) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ordered := c.orderedLocked(nil)
	keys := make([]string, len(ordered))
	for i, s := range ordered {
		keys[i] = s.key
	}
	return keys
}

// Next shallow-merges the update into the current value and notifies
// subscribers depending on any key present in the update.
func (c *Container) Next(ctx context.Context, u Update) error {
	return c.apply(ctx, u, false, tracing.SpanNext, pubsub.UpdatedEvent)
}

// Overwrite replaces the current value with the update and notifies every
// subscriber.
func (c *Container) Overwrite(ctx context.Context, u Update) error {
	return c.apply(ctx, u, true, tracing.SpanOverwrite, pubsub.ReplacedEvent)
}

// Reset merges the initial value back in. Subscribers depending on any
// initial key are notified. Keys added since construction are kept.
func (c *Container) Reset(ctx context.Context) {
	// The initial value is a validated mapping, so apply cannot fail.
	_ = c.apply(ctx, Replace(c.initial.Clone()), false, tracing.SpanReset, pubsub.ResetEvent)
}

// Subscribe registers fn under a key (DefaultKey unless WithKey is given).
// When immediate, fn is called once right away with the current value.
func (c *Container) Subscribe(fn Callback, opts ...SubscribeOption) {
	cfg := subscribeConfig{key: DefaultKey}
	for _, opt := range opts {
		opt(&cfg)
	}
	if fn == nil {
		fn = func(Value) {}
	}
	immediate := c.behavior
	if cfg.immediate != nil {
		immediate = *cfg.immediate
	}
	deps := NewDependencySet(cfg.deps...)

	c.mu.Lock()
	entry, replaced := c.subs[cfg.key]
	if replaced {
		entry.fn = fn
		entry.deps = deps
	} else {
		c.seq++
		entry = &subscriber{key: cfg.key, fn: fn, deps: deps, seq: c.seq}
		c.subs[cfg.key] = entry
	}
	snapshot := *entry
	current := c.value.Clone()
	c.mu.Unlock()

	log.Debug(log.CatState, "subscribed", "name", c.name, "key", cfg.key, "deps", len(deps), "replaced", replaced, "immediate", immediate)

	if immediate {
		ctx, span := c.tracer.Start(context.Background(), tracing.SpanSubscribe,
			trace.WithAttributes(
				attribute.String(tracing.AttrStateName, c.name),
				attribute.String(tracing.AttrSubscriberKey, cfg.key),
			))
		span.AddEvent(tracing.EventImmediateFired)
		c.invoke(ctx, snapshot, current)
		span.End()
	}
}

// Unsubscribe removes the subscriber registered under key. Unknown keys are ignored.
func (c *Container) Unsubscribe(key string) {
	c.mu.Lock()
	_, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		log.Debug(log.CatState, "unsubscribed", "name", c.name, "key", key)
	}
}

// Dispose removes every subscriber. The value is untouched and the
// container stays usable.
func (c *Container) Dispose() {
	c.mu.Lock()
	n := len(c.subs)
	c.subs = make(map[string]*subscriber)
	c.mu.Unlock()

	log.Debug(log.CatState, "disposed", "name", c.name, "removed", n)
}

// Watch streams committed changes until ctx is cancelled, in commit order.
// A change is published before its subscribers are called, so updates made
// from inside a callback follow the change that triggered them. Slow readers
// miss changes rather than block updates.
func (c *Container) Watch(ctx context.Context) <-chan pubsub.Event[Change] {
	return c.changes.Subscribe(ctx)
}

var _ pubsub.Subscriber[Change] = watchSource{}

type watchSource struct{ c *Container }

func (w watchSource) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return w.c.Watch(ctx)
}

// Source returns the change stream as a pubsub.Subscriber, ready for
// pubsub.NewContinuousListener in a Bubble Tea model.
func (c *Container) Source() pubsub.Subscriber[Change] {
	return watchSource{c: c}
}

func (c *Container) apply(ctx context.Context, u Update, overwrite bool, spanName string, eventType pubsub.EventType) error {
	ctx, span := c.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String(tracing.AttrStateName, c.name),
			attribute.Bool(tracing.AttrOverwrite, overwrite),
		))
	defer span.End()

	change, targets, err := c.commit(u, overwrite, eventType)
	if err != nil {
		span.AddEvent(tracing.EventValueRejected, trace.WithAttributes(attribute.String(tracing.AttrErrorMessage, err.Error())))
		span.SetStatus(codes.Error, err.Error())
		log.Warn(log.CatState, "rejected update", "name", c.name, "op", spanName, "error", err)
		return err
	}

	span.SetAttributes(
		attribute.String(tracing.AttrChangeID, change.ID.String()),
		attribute.StringSlice(tracing.AttrChangeKeys, change.Keys),
		attribute.Int(tracing.AttrNotified, len(targets)),
		attribute.Int(tracing.AttrSubscribers, c.Len()),
	)
	log.Debug(log.CatState, "committed", "name", c.name, "op", spanName, "id", change.ID, "keys", change.Keys, "notify", len(targets))

	for _, s := range targets {
		c.invoke(ctx, s, change.Value)
	}
	return nil
}

// commit resolves u against a snapshot without holding the lock, then
// validates and applies it under the lock, returning the published change
// and the subscribers to notify. If another update committed while a
// Compute was resolving, it is resolved again against the newer value.
func (c *Container) commit(u Update, overwrite bool, eventType pubsub.EventType) (Change, []subscriber, error) {
	for {
		c.mu.Lock()
		version := c.version
		current := c.value.Clone()
		c.mu.Unlock()

		var raw any
		if u != nil {
			raw = u.resolve(current)
		}
		update, err := asValue(raw)
		if err != nil {
			return Change{}, nil, err
		}
		update = update.Clone()

		change, targets, ok := c.applyIfUnchanged(version, update, overwrite, eventType)
		if ok {
			return change, targets, nil
		}
	}
}

// applyIfUnchanged commits update unless the version moved since the
// snapshot. The change is published before the lock is released, so the
// Watch stream carries changes in commit order.
func (c *Container) applyIfUnchanged(version uint64, update Value, overwrite bool, eventType pubsub.EventType) (Change, []subscriber, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version != version {
		return Change{}, nil, false
	}
	c.version++

	if overwrite {
		c.value = update.Clone()
	} else {
		for k, v := range update {
			c.value[k] = v
		}
	}

	changed := update.Keys()
	targets := c.orderedLocked(func(s *subscriber) bool {
		return overwrite || s.deps.Matches(changed)
	})
	change := Change{
		ID:        uuid.New(),
		Keys:      changed.Sorted(),
		Value:     c.value.Clone(),
		Overwrite: overwrite,
	}
	c.changes.Publish(eventType, change)
	return change, targets, true
}

// orderedLocked copies the subscribers accepted by keep (all when nil) in
// subscription order. Callers hold c.mu.
func (c *Container) orderedLocked(keep func(*subscriber) bool) []subscriber {
	out := make([]subscriber, 0, len(c.subs))
	for _, s := range c.subs {
		if keep == nil || keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// invoke runs one callback with its own copy of v, recovering panics.
func (c *Container) invoke(ctx context.Context, s subscriber, v Value) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cbErr := &CallbackError{Key: s.key, Recovered: r}
		trace.SpanFromContext(ctx).AddEvent(tracing.EventCallbackPanic,
			trace.WithAttributes(
				attribute.String(tracing.AttrSubscriberKey, s.key),
				attribute.String(tracing.AttrErrorMessage, cbErr.Error()),
			))
		log.ErrorErr(log.CatBroadcast, "subscriber panicked", cbErr, "name", c.name, "key", s.key)
		if c.onPanic != nil {
			c.onPanic(cbErr)
		}
	}()
	s.fn(v.Clone())
}
