// Package script replays a YAML description of container operations and
// reports which subscribers were notified at each step.
package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultName names the container when a script leaves name empty.
const DefaultName = "script"

// Op is a container operation a step performs.
type Op string

const (
	OpSubscribe     Op = "subscribe"
	OpUnsubscribe   Op = "unsubscribe"
	OpNext          Op = "next"
	OpOverwrite     Op = "overwrite"
	OpReset         Op = "reset"
	OpDispose       Op = "dispose"
	OpPipeSubscribe Op = "pipe_subscribe"
	OpPipeReset     Op = "pipe_reset"
)

// mutates reports whether the op can change the container value.
func (o Op) mutates() bool {
	switch o {
	case OpNext, OpOverwrite, OpReset, OpPipeReset:
		return true
	}
	return false
}

func (o Op) valid() bool {
	switch o {
	case OpSubscribe, OpUnsubscribe, OpNext, OpOverwrite, OpReset, OpDispose, OpPipeSubscribe, OpPipeReset:
		return true
	}
	return false
}

// Script is a named sequence of steps run against a fresh container.
type Script struct {
	Name     string         `yaml:"name"`
	Initial  map[string]any `yaml:"initial"`
	Behavior bool           `yaml:"behavior"`
	Steps    []Step         `yaml:"steps"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op          Op       `yaml:"op"`
	Key         string   `yaml:"key,omitempty"`
	Deps        []string `yaml:"deps,omitempty"`
	Immediate   *bool    `yaml:"immediate,omitempty"`
	Value       any      `yaml:"value,omitempty"`
	ExpectError bool     `yaml:"expect_error,omitempty"`
	// Panic makes a subscribing step register a callback that panics.
	Panic bool `yaml:"panic,omitempty"`
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = DefaultName
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied script path
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return Parse(data)
}

// Validate checks every step names a known op.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("script has no steps")
	}
	for i, step := range s.Steps {
		if !step.Op.valid() {
			return fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
		if step.Panic && step.Op != OpSubscribe && step.Op != OpPipeSubscribe {
			return fmt.Errorf("step %d: panic only applies to subscribe ops", i+1)
		}
	}
	return nil
}
