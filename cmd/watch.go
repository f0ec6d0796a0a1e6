package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/observable"
	"github.com/zjrosen/observables/internal/statefile"
	"github.com/zjrosen/observables/internal/ui/watchview"
	"github.com/zjrosen/observables/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Feed a container from a state file and print notifications",
	Long: `Watch a YAML or JSON state file. Its contents are applied to a
container on start and again after every change. A subscriber limited to
--deps prints the value whenever one of those keys changes; every committed
change is printed with its id and changed keys.

With --tui the same information is shown in an interactive screen with a
scrollable change list and, when --debug is set, a live log pane.

Examples:
  observables watch state.yaml
  observables watch state.yaml --deps count,user
  observables watch state.yaml --overwrite
  observables watch state.yaml --tui --debug`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSlice("deps", nil, "keys the printing subscriber depends on (default: all)")
	watchCmd.Flags().Bool("overwrite", false, "replace the value on reload instead of merging")
	watchCmd.Flags().Bool("tui", false, "show an interactive screen instead of printing lines")
	rootCmd.AddCommand(watchCmd)
}

// lineWriter serialises whole lines from the callback and stream goroutines.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.w, s)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	overwrite := cfg.Watch.Overwrite
	if cmd.Flags().Changed("overwrite") {
		overwrite, _ = cmd.Flags().GetBool("overwrite")
	}
	deps, _ := cmd.Flags().GetStringSlice("deps")
	tui, _ := cmd.Flags().GetBool("tui")

	c := observable.New(nil,
		observable.WithName(filepath.Base(path)),
		observable.WithBehavior(cfg.Container.Behavior),
		observable.WithBufferSize(cfg.Container.BufferSize),
		observable.WithTracer(provider.Tracer()),
	)

	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	if tui {
		return runWatchTUI(ctx, cmd, path, w, c, deps, overwrite)
	}

	out := &lineWriter{w: cmd.OutOrStdout()}
	c.Subscribe(func(v observable.Value) {
		out.println(notifyStyle.Render("-> " + statefile.RenderInline(v)))
	}, observable.WithKey("watch"), observable.WithDependencies(deps...))

	changes := c.Watch(ctx)
	go func() {
		for ev := range changes {
			out.println(stepStyle.Render(fmt.Sprintf("%s %s %s keys=%s",
				ev.Timestamp.Format(time.TimeOnly), ev.Type, ev.Payload.ID.String()[:8], strings.Join(ev.Payload.Keys, ","))))
		}
	}()

	out.println(headingStyle.Render(fmt.Sprintf("watching %s (ctrl+c to stop)", path)))

	return watcher.Feed(ctx, w, c, watcher.FeedOptions{
		Overwrite: overwrite,
		OnError: func(err error) {
			out.println(errorStyle.Render("error: " + err.Error()))
		},
	})
}

// runWatchTUI runs the watch screen until the user quits or ctx ends. The
// feed runs beside the program and reports into it through Send.
func runWatchTUI(ctx context.Context, cmd *cobra.Command, path string, w *watcher.Watcher, c *observable.Container, deps []string, overwrite bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(watchview.New(ctx, c),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)

	c.Subscribe(func(v observable.Value) {
		p.Send(watchview.NotifiedMsg{Value: v})
	}, observable.WithKey("watch"), observable.WithDependencies(deps...))

	feedDone := make(chan error, 1)
	go func() {
		feedDone <- watcher.Feed(ctx, w, c, watcher.FeedOptions{
			Overwrite: overwrite,
			OnError: func(err error) {
				p.Send(watchview.ErrorMsg{Err: err})
			},
		})
	}()

	_, runErr := p.Run()
	cancel()
	feedErr := <-feedDone

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("running watch screen: %w", runErr)
	}
	log.Debug(log.CatWatcher, "watch screen closed", "path", path)
	return feedErr
}
