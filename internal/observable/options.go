package observable

import (
	"go.opentelemetry.io/otel/trace"
)

// DefaultKey is the subscriber id used when none is given.
const DefaultKey = "main"

// Option configures a Container.
type Option func(*Container)

// WithBehavior makes Subscribe invoke new subscribers immediately with the
// current value unless they opt out with WithImmediate(false).
func WithBehavior(behavior bool) Option {
	return func(c *Container) {
		c.behavior = behavior
	}
}

// WithName labels the container in logs, spans and registries.
func WithName(name string) Option {
	return func(c *Container) {
		c.name = name
	}
}

// WithTracer sets the tracer used for update spans. nil keeps the no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Container) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithPanicHandler receives every recovered subscriber panic.
func WithPanicHandler(fn func(*CallbackError)) Option {
	return func(c *Container) {
		c.onPanic = fn
	}
}

// WithBufferSize sets the per-listener buffer of the Watch stream.
func WithBufferSize(size int) Option {
	return func(c *Container) {
		c.bufferSize = size
	}
}

// SubscribeOption configures a single Subscribe call.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	key       string
	deps      []string
	immediate *bool
}

// WithKey sets the subscriber id. Subscribing again with the same id
// replaces the earlier callback and dependencies.
func WithKey(key string) SubscribeOption {
	return func(s *subscribeConfig) {
		s.key = key
	}
}

// WithDependencies lists the top-level keys that trigger the callback.
// No dependencies means every update triggers it.
func WithDependencies(keys ...string) SubscribeOption {
	return func(s *subscribeConfig) {
		s.deps = append(s.deps, keys...)
	}
}

// WithImmediate overrides the container's behavior flag for this call.
func WithImmediate(immediate bool) SubscribeOption {
	return func(s *subscribeConfig) {
		s.immediate = &immediate
	}
}
