package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flo-mic/stackdash/internal/api"
	"github.com/flo-mic/stackdash/internal/compose"
	"github.com/flo-mic/stackdash/internal/discovery"
)

// Entry scripts a script stack may ship.
var scriptNames = []string{"deploy.sh", "pre.sh", "post.sh"}

// Task is one unit of work of a run, scoped to a stack.
type Task struct {
	Host  string
	Stack string
	Run   func(ctx context.Context) error
}

// Plan lists the tasks of a run and the host/stack totals they cover.
type Plan func(ctx context.Context) ([]Task, api.Summary, error)

// Tasks returns a source that plans on its first call, then runs one task
// per call. A failing task is reported as a warning and counted in the
// summary; the run carries on with the next task.
func Tasks(start time.Time, edition string, plan Plan) Source {
	return &taskSource{start: start, edition: edition, plan: plan}
}

type taskSource struct {
	start   time.Time
	edition string
	plan    Plan

	state   int
	tasks   []Task
	next    int
	summary api.Summary
}

const (
	stateStart = iota
	statePlan
	stateTasks
	stateDone
)

func (s *taskSource) Next(ctx context.Context) (api.Event, error) {
	if err := ctx.Err(); err != nil {
		return api.Event{}, err
	}
	switch s.state {
	case stateStart:
		s.state = statePlan
		return startEvent(s.start, s.edition), nil
	case statePlan:
		tasks, totals, err := s.plan(ctx)
		if err != nil {
			return api.Event{}, fmt.Errorf("planning: %w", err)
		}
		s.tasks = tasks
		s.summary.Hosts, s.summary.Stacks = totals.Hosts, totals.Stacks
		s.state = stateTasks
		return api.Event{
			Level: api.LevelInfo,
			Msg:   fmt.Sprintf("planning %d stacks on %d hosts", totals.Stacks, totals.Hosts),
		}, nil
	case stateTasks:
		if s.next < len(s.tasks) {
			t := s.tasks[s.next]
			s.next++
			ev := api.Event{Level: api.LevelInfo, Host: t.Host, Stack: t.Stack, Msg: "ok"}
			if err := t.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return api.Event{}, ctx.Err()
				}
				s.summary.Failed++
				ev.Level, ev.Msg = api.LevelWarn, err.Error()
			}
			return ev, nil
		}
		s.state = stateDone
		summary := s.summary
		return api.Event{Level: api.LevelDone, Summary: &summary}, nil
	}
	return api.Event{}, io.EOF
}

func (s *taskSource) Progress() api.Summary {
	return s.summary
}

// Check verifies every stack under root without changing anything:
// compose manifests must load and script stacks must ship an entry
// script.
func Check(root string, start time.Time, edition string) Source {
	return Tasks(start, edition, func(ctx context.Context) ([]Task, api.Summary, error) {
		inv := discovery.Scan(root, nil)
		var tasks []Task
		totals := api.Summary{Hosts: len(inv.Hosts)}
		for _, h := range inv.Hosts {
			for _, st := range h.Stacks {
				tasks = append(tasks, Task{Host: h.Host, Stack: st.Name, Run: checkStack(st)})
			}
		}
		totals.Stacks = len(tasks)
		return tasks, totals, nil
	})
}

func checkStack(st api.Stack) func(context.Context) error {
	if st.Type == api.StackCompose {
		return func(ctx context.Context) error {
			_, err := compose.Load(ctx, st.Path, discovery.ManifestName(st.Path))
			return err
		}
	}
	return func(context.Context) error {
		for _, name := range scriptNames {
			if fi, err := os.Stat(filepath.Join(st.Path, name)); err == nil && fi.Mode().IsRegular() {
				return nil
			}
		}
		return fmt.Errorf("no entry script found (%s)", strings.Join(scriptNames, ", "))
	}
}
