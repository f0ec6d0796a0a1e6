package script

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/observables/internal/observable"
	"github.com/zjrosen/observables/internal/registry"
)

const counterScript = `
name: counter
initial:
  count: 0
steps:
  - op: subscribe
    key: c
    deps: [count]
  - op: next
    value: {count: 1}
  - op: next
    value: {other: 5}
  - op: reset
`

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	s, err := Parse([]byte(src))
	require.NoError(t, err)
	return s
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no steps", "name: x\n", "no steps"},
		{"unknown op", "steps:\n  - op: explode\n", `unknown op "explode"`},
		{"panic on next", "steps:\n  - op: next\n    panic: true\n", "panic only applies"},
		{"malformed", "steps: [\n", "parsing script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParse_DefaultName(t *testing.T) {
	s := mustParse(t, "steps:\n  - op: reset\n")
	require.Equal(t, DefaultName, s.Name)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(counterScript), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "counter", s.Name)
	require.Len(t, s.Steps, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading script")
}

func TestRun_CounterExample(t *testing.T) {
	report, err := Run(context.Background(), mustParse(t, counterScript))
	require.NoError(t, err)

	require.Len(t, report.Steps, 4)
	require.Empty(t, report.Steps[0].Notifications)
	require.Equal(t, []Notification{{Key: "c", Value: observable.Value{"count": 1}}}, report.Steps[1].Notifications)
	require.Empty(t, report.Steps[2].Notifications)
	require.Equal(t, []Notification{{Key: "c", Value: observable.Value{"count": 0, "other": 5}}}, report.Steps[3].Notifications)

	require.Equal(t, observable.Value{"count": 0}, report.Initial)
	require.Equal(t, observable.Value{"count": 0, "other": 5}, report.Final)
	require.Len(t, report.Notified(), 2)
}

func TestRun_OverwriteUnsubscribeDispose(t *testing.T) {
	src := `
initial: {a: 1, b: 2}
steps:
  - op: subscribe
    deps: [a]
  - op: subscribe
    key: other
    deps: [zzz]
  - op: overwrite
    value: {c: 3}
  - op: unsubscribe
  - op: overwrite
    value: {d: 4}
  - op: dispose
  - op: overwrite
    value: {e: 5}
`
	report, err := Run(context.Background(), mustParse(t, src))
	require.NoError(t, err)

	keys := func(ns []Notification) []string {
		var out []string
		for _, n := range ns {
			out = append(out, n.Key)
		}
		return out
	}
	require.Equal(t, []string{"main", "other"}, keys(report.Steps[2].Notifications))
	require.Equal(t, []string{"other"}, keys(report.Steps[4].Notifications))
	require.Empty(t, report.Steps[6].Notifications)
	require.Equal(t, observable.Value{"e": 5}, report.Final)
}

func TestRun_BehaviorAndImmediate(t *testing.T) {
	src := `
behavior: true
initial: {n: 1}
steps:
  - op: subscribe
    key: eager
  - op: subscribe
    key: lazy
    immediate: false
`
	report, err := Run(context.Background(), mustParse(t, src))
	require.NoError(t, err)

	require.Equal(t, []Notification{{Key: "eager", Value: observable.Value{"n": 1}}}, report.Steps[0].Notifications)
	require.Empty(t, report.Steps[1].Notifications)
}

func TestRun_ExpectedError(t *testing.T) {
	src := `
initial: {n: 1}
steps:
  - op: subscribe
  - op: next
    value: [1, 2]
    expect_error: true
  - op: next
    value: {n: 2}
`
	report, err := Run(context.Background(), mustParse(t, src))
	require.NoError(t, err)

	require.ErrorIs(t, report.Steps[1].Err, observable.ErrInvalidValue)
	require.Empty(t, report.Steps[1].Notifications)
	require.Equal(t, report.Steps[1].Before, report.Steps[1].After)
	require.Len(t, report.Steps[2].Notifications, 1)
}

func TestRun_UnexpectedErrorStops(t *testing.T) {
	src := `
steps:
  - op: next
    value: 42
  - op: next
    value: {n: 2}
`
	report, err := Run(context.Background(), mustParse(t, src))
	require.ErrorIs(t, err, observable.ErrInvalidValue)
	require.ErrorContains(t, err, "step 1 (next)")
	require.Len(t, report.Steps, 1)
	require.Equal(t, observable.Value{}, report.Final)
}

func TestRun_MissingExpectedError(t *testing.T) {
	src := `
steps:
  - op: next
    value: {n: 1}
    expect_error: true
`
	_, err := Run(context.Background(), mustParse(t, src))
	require.ErrorContains(t, err, "expected an error")
}

func TestRun_PanickingSubscriberIsolated(t *testing.T) {
	src := `
steps:
  - op: subscribe
    key: bad
    panic: true
  - op: subscribe
    key: good
  - op: next
    value: {n: 1}
`
	report, err := Run(context.Background(), mustParse(t, src))
	require.NoError(t, err)

	step := report.Steps[2]
	require.Len(t, step.Notifications, 2)
	require.Equal(t, "good", step.Notifications[1].Key)
	require.Len(t, step.Panics, 1)
	require.Equal(t, "bad", step.Panics[0].Key)
}

func TestRun_PipeOpsUseRegistry(t *testing.T) {
	src := `
name: shared
initial: {count: 0}
steps:
  - op: pipe_subscribe
    key: view
    deps: [count]
  - op: next
    value: {count: 3}
  - op: pipe_reset
`
	reg := registry.New()
	report, err := Run(context.Background(), mustParse(t, src), WithRegistry(reg))
	require.NoError(t, err)

	require.Len(t, report.Steps[1].Notifications, 1)
	require.Equal(t, []Notification{{Key: "view", Value: observable.Value{"count": 0}}}, report.Steps[2].Notifications)
	require.Empty(t, reg.Names(), "container is removed when the run ends")
}

func TestRun_NameTaken(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	_, err := reg.Create(ctx, "counter", nil)
	require.NoError(t, err)

	_, err = Run(ctx, mustParse(t, counterScript), WithRegistry(reg))
	require.ErrorIs(t, err, registry.ErrExists)
}

func TestReport_Write(t *testing.T) {
	report, err := Run(context.Background(), mustParse(t, counterScript))
	require.NoError(t, err)

	var withDiff bytes.Buffer
	require.NoError(t, report.Write(&withDiff, WriteOptions{Diff: true}))
	out := withDiff.String()

	require.Contains(t, out, "== counter ==")
	require.Contains(t, out, "initial {count: 0}")
	require.Contains(t, out, "[1] subscribe key=c deps=count")
	require.Contains(t, out, "[2] next {count: 1}")
	require.Contains(t, out, "    -> c {count: 1}")
	require.Contains(t, out, "    - count: 0")
	require.Contains(t, out, "    + count: 1")
	require.Contains(t, out, "    + other: 5")
	require.Contains(t, out, "final {count: 0, other: 5}")

	var plain bytes.Buffer
	require.NoError(t, report.Write(&plain, WriteOptions{}))
	require.NotContains(t, plain.String(), "    + ")
}

func TestReport_WriteStyles(t *testing.T) {
	report, err := Run(context.Background(), mustParse(t, counterScript))
	require.NoError(t, err)

	var buf bytes.Buffer
	styles := Styles{
		Heading: strings.ToUpper,
		Notify:  func(s string) string { return "<" + s + ">" },
	}
	require.NoError(t, report.Write(&buf, WriteOptions{Styles: styles}))

	require.Contains(t, buf.String(), "== COUNTER ==")
	require.Contains(t, buf.String(), "<    -> c {count: 1}>")
}

func TestLineDiff(t *testing.T) {
	require.Nil(t, lineDiff("a: 1\n", "a: 1\n"))

	got := lineDiff("a: 1\nb: 2\n", "a: 1\nb: 3\n")
	require.Equal(t, []DiffLine{
		{Kind: DiffContext, Text: "a: 1"},
		{Kind: DiffRemoved, Text: "b: 2"},
		{Kind: DiffAdded, Text: "b: 3"},
	}, got)
}

func TestReport_WriteMaxWidth(t *testing.T) {
	report, err := Run(context.Background(), mustParse(t, counterScript))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, WriteOptions{MaxWidth: 12}))

	require.Contains(t, buf.String(), "== counter …")
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		require.LessOrEqual(t, len([]rune(line)), 12, line)
	}
	require.Contains(t, buf.String(), "…")
}
