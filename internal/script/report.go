package script

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/zjrosen/observables/internal/statefile"
)

// Styles decorates report fragments. Nil fields leave text unchanged.
type Styles struct {
	Heading func(string) string
	Step    func(string) string
	Notify  func(string) string
	Error   func(string) string
	Added   func(string) string
	Removed func(string) string
}

func apply(style func(string) string, text string) string {
	if style == nil {
		return text
	}
	return style(text)
}

// WriteOptions controls Write.
type WriteOptions struct {
	// Diff shows a line diff of the state after each mutating step.
	Diff bool

	// MaxWidth truncates longer lines (in terminal cells). Zero disables.
	MaxWidth int

	Styles Styles
}

// Write prints a human-readable report to w.
func (r *Report) Write(w io.Writer, opts WriteOptions) error {
	st := opts.Styles
	var b strings.Builder
	line := func(style func(string) string, text string) {
		if opts.MaxWidth > 0 {
			text = runewidth.Truncate(text, opts.MaxWidth, "…")
		}
		b.WriteString(apply(style, text))
		b.WriteByte('\n')
	}

	line(st.Heading, "== "+r.Name+" ==")
	line(nil, "initial "+statefile.RenderInline(r.Initial))

	for _, res := range r.Steps {
		line(st.Step, fmt.Sprintf("[%d] %s", res.Index, describe(res.Step)))

		for _, n := range res.Notifications {
			line(st.Notify, fmt.Sprintf("    -> %s %s", n.Key, statefile.RenderInline(n.Value)))
		}
		for _, p := range res.Panics {
			line(st.Error, "    !! "+p.Error())
		}
		if res.Err != nil {
			line(st.Error, "    error (expected): "+res.Err.Error())
		}

		if opts.Diff && res.Step.Op.mutates() {
			for _, d := range res.Diff() {
				switch d.Kind {
				case DiffAdded:
					line(st.Added, "    + "+d.Text)
				case DiffRemoved:
					line(st.Removed, "    - "+d.Text)
				default:
					line(nil, "      "+d.Text)
				}
			}
		}
	}

	line(nil, "final "+statefile.RenderInline(r.Final))

	_, err := io.WriteString(w, b.String())
	return err
}

func describe(s Step) string {
	parts := []string{string(s.Op)}
	switch s.Op {
	case OpSubscribe, OpPipeSubscribe:
		parts = append(parts, "key="+keyOrDefault(s.Key))
		if len(s.Deps) > 0 {
			parts = append(parts, "deps="+strings.Join(s.Deps, ","))
		}
		if s.Immediate != nil {
			parts = append(parts, fmt.Sprintf("immediate=%t", *s.Immediate))
		}
		if s.Panic {
			parts = append(parts, "panics")
		}
	case OpUnsubscribe:
		parts = append(parts, "key="+keyOrDefault(s.Key))
	case OpNext, OpOverwrite:
		if m, ok := statefile.Normalize(s.Value).(map[string]any); ok {
			parts = append(parts, statefile.RenderInline(m))
		} else {
			parts = append(parts, fmt.Sprintf("%v", s.Value))
		}
	}
	return strings.Join(parts, " ")
}
