package script

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/observable"
	"github.com/zjrosen/observables/internal/registry"
	"github.com/zjrosen/observables/internal/statefile"
)

// Notification is one callback invocation observed during a step.
type Notification struct {
	Key   string
	Value observable.Value
}

// StepResult records what a single step did.
type StepResult struct {
	Index         int // 1-based
	Step          Step
	Before        observable.Value
	After         observable.Value
	Notifications []Notification
	Panics        []*observable.CallbackError
	// Err is an expected error returned by the step.
	Err error
}

// Diff returns the line diff between the rendered states around the step.
func (r StepResult) Diff() []DiffLine {
	return lineDiff(statefile.Render(r.Before), statefile.Render(r.After))
}

// Report is the outcome of a run.
type Report struct {
	Name    string
	Initial observable.Value
	Steps   []StepResult
	Final   observable.Value
}

// Notified returns every notification in the report, in order.
func (r *Report) Notified() []Notification {
	var out []Notification
	for _, s := range r.Steps {
		out = append(out, s.Notifications...)
	}
	return out
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	tracer     trace.Tracer
	registry   *registry.Registry
	bufferSize int
}

// WithTracer traces the container operations of the run.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *runConfig) {
		c.tracer = tracer
	}
}

// WithRegistry registers the run's container in r instead of a private
// registry. The container is removed again when the run ends.
func WithRegistry(r *registry.Registry) Option {
	return func(c *runConfig) {
		c.registry = r
	}
}

// WithBufferSize sets the container's change stream buffer.
func WithBufferSize(size int) Option {
	return func(c *runConfig) {
		c.bufferSize = size
	}
}

// Run executes s against a fresh container. A step failing with an error it
// did not expect stops the run; the partial report is returned with the error.
func Run(ctx context.Context, s *Script, opts ...Option) (*Report, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = registry.New()
	}

	name := s.Name
	if name == "" {
		name = DefaultName
	}

	r := &runner{report: &Report{Name: name}}
	containerOpts := []observable.Option{
		observable.WithBehavior(s.Behavior),
		observable.WithPanicHandler(r.recordPanic),
		observable.WithBufferSize(cfg.bufferSize),
	}
	if cfg.tracer != nil {
		containerOpts = append(containerOpts, observable.WithTracer(cfg.tracer))
	}

	start := toValue(s.Initial)
	c, err := cfg.registry.Create(ctx, name, start, containerOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	defer cfg.registry.Remove(ctx, name)

	pipe, err := cfg.registry.Piped(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("piping container: %w", err)
	}

	r.report.Initial = c.Value()
	log.Info(log.CatScript, "run started", "name", name, "steps", len(s.Steps))

	for i, step := range s.Steps {
		res := StepResult{Index: i + 1, Step: step, Before: c.Value()}
		r.current = &res

		stepErr := r.exec(ctx, c, pipe, step)
		res.After = c.Value()
		r.current = nil

		switch {
		case stepErr != nil && step.ExpectError:
			res.Err = stepErr
		case stepErr != nil:
			r.report.Steps = append(r.report.Steps, res)
			r.report.Final = c.Value()
			log.ErrorErr(log.CatScript, "step failed", stepErr, "name", name, "step", res.Index, "op", step.Op)
			return r.report, fmt.Errorf("step %d (%s): %w", res.Index, step.Op, stepErr)
		case step.ExpectError:
			r.report.Steps = append(r.report.Steps, res)
			r.report.Final = c.Value()
			return r.report, fmt.Errorf("step %d (%s): expected an error", res.Index, step.Op)
		}

		r.report.Steps = append(r.report.Steps, res)
	}

	r.report.Final = c.Value()
	log.Info(log.CatScript, "run finished", "name", name, "notifications", len(r.report.Notified()))
	return r.report, nil
}

type runner struct {
	report  *Report
	current *StepResult
}

func (r *runner) record(key string, panics bool) observable.Callback {
	return func(v observable.Value) {
		if r.current != nil {
			r.current.Notifications = append(r.current.Notifications, Notification{Key: key, Value: v})
		}
		if panics {
			panic(fmt.Sprintf("subscriber %s failed", key))
		}
	}
}

func (r *runner) recordPanic(err *observable.CallbackError) {
	if r.current != nil {
		r.current.Panics = append(r.current.Panics, err)
	}
}

func (r *runner) exec(ctx context.Context, c *observable.Container, pipe observable.Piped, step Step) error {
	key := keyOrDefault(step.Key)

	switch step.Op {
	case OpSubscribe:
		c.Subscribe(r.record(key, step.Panic), subscribeOptions(key, step)...)
	case OpPipeSubscribe:
		pipe.Subscribe(r.record(key, step.Panic), subscribeOptions(key, step)...)
	case OpUnsubscribe:
		c.Unsubscribe(key)
	case OpNext:
		return c.Next(ctx, observable.Replace(statefile.Normalize(step.Value)))
	case OpOverwrite:
		return c.Overwrite(ctx, observable.Replace(statefile.Normalize(step.Value)))
	case OpReset:
		c.Reset(ctx)
	case OpPipeReset:
		pipe.Reset(ctx)
	case OpDispose:
		c.Dispose()
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func subscribeOptions(key string, step Step) []observable.SubscribeOption {
	opts := []observable.SubscribeOption{
		observable.WithKey(key),
		observable.WithDependencies(step.Deps...),
	}
	if step.Immediate != nil {
		opts = append(opts, observable.WithImmediate(*step.Immediate))
	}
	return opts
}

func toValue(m map[string]any) observable.Value {
	v, _ := statefile.Normalize(m).(map[string]any)
	return observable.Value(v)
}

func keyOrDefault(key string) string {
	if key == "" {
		return observable.DefaultKey
	}
	return key
}
