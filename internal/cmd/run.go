package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/flo-mic/stackdash/internal/api"
)

// errDropped is returned when a run stream ends without its done event.
var errDropped = errors.New("connection dropped before the run finished")

var levelStyles = map[api.Level]lipgloss.Style{
	api.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	api.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	api.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	api.LevelDone:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
}

// Run starts a run on the server and prints its events as they arrive.
func Run(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	mode := fs.String("mode", "", "run mode: script (default) or check")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := loadAPIClient()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := c.run(ctx, *mode, stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("run finished with %d failed stacks", summary.Failed)
	}
	return nil
}

func (c *apiClient) run(ctx context.Context, mode string, stdout io.Writer) (api.Summary, error) {
	body, err := json.Marshal(api.RunRequest{Mode: mode})
	if err != nil {
		return api.Summary{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/ci/run", body)
	if err != nil {
		return api.Summary{}, err
	}
	defer resp.Body.Close()

	if id := resp.Header.Get("X-Run-ID"); id != "" {
		fmt.Fprintf(stdout, "run %s\n", id)
	}
	return streamAndCheck(resp.Body, stdout)
}

// streamAndCheck prints each NDJSON event from r and verifies that the
// stream closed with a done event. The done event's summary is returned.
func streamAndCheck(r io.Reader, out io.Writer) (api.Summary, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev api.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return api.Summary{}, fmt.Errorf("malformed event %q: %w", line, err)
		}
		fmt.Fprintln(out, formatEvent(ev))
		if ev.Terminal() {
			if ev.Summary == nil {
				return api.Summary{}, nil
			}
			return *ev.Summary, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return api.Summary{}, fmt.Errorf("%w: %v", errDropped, err)
	}
	return api.Summary{}, errDropped
}

func formatEvent(ev api.Event) string {
	level := levelStyles[ev.Level].Render(fmt.Sprintf("%-5s", ev.Level))
	switch {
	case ev.Terminal() && ev.Summary != nil:
		s := ev.Summary
		return fmt.Sprintf("%s hosts=%d stacks=%d changed=%d failed=%d", level, s.Hosts, s.Stacks, s.Changed, s.Failed)
	case ev.Host != "":
		return fmt.Sprintf("%s %s/%s: %s", level, ev.Host, ev.Stack, ev.Msg)
	case ev.Edition != "":
		return fmt.Sprintf("%s %s (%s)", level, ev.Msg, ev.Edition)
	}
	return fmt.Sprintf("%s %s", level, ev.Msg)
}
