package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/flo-mic/stackdash/internal/api"
	"github.com/flo-mic/stackdash/internal/entitlements"
)

// Run modes accepted by Start.
const (
	ModeScript = "script"
	ModeCheck  = "check"
)

var (
	// ErrNotEntitled is returned by Start when the license does not
	// grant runs. No event has been produced at that point.
	ErrNotEntitled = errors.New("run: ci api is not included in this license")
	// ErrUnknownMode is returned by Start for an unrecognised mode.
	ErrUnknownMode = errors.New("run: unknown mode")
)

// Starter builds the source for a run request.
type Starter struct {
	// ScanRoot is the inventory the check mode works on.
	ScanRoot string
	// Now stamps the start event. Defaults to time.Now.
	Now func() time.Time
}

// Start checks ents and returns a fresh source for mode. The empty mode
// is the scripted run.
func (s Starter) Start(mode string, ents entitlements.Entitlements) (Source, error) {
	if !ents.Allows(entitlements.FeatureCIAPI) {
		return nil, ErrNotEntitled
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	switch mode {
	case "", ModeScript:
		return Script(now().UTC(), ents.Edition), nil
	case ModeCheck:
		return Check(s.ScanRoot, now().UTC(), ents.Edition), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
}

// Events returns a source that yields evs in order.
func Events(evs ...api.Event) Source {
	return &sliceSource{events: evs}
}

type sliceSource struct {
	events []api.Event
	next   int
}

func (s *sliceSource) Next(ctx context.Context) (api.Event, error) {
	if err := ctx.Err(); err != nil {
		return api.Event{}, err
	}
	if s.next >= len(s.events) {
		return api.Event{}, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}

// Script is the placeholder run: it announces itself, plans, finds
// nothing to change and finishes with an empty summary.
func Script(start time.Time, edition string) Source {
	return Events(
		startEvent(start, edition),
		api.Event{Level: api.LevelInfo, Msg: "planning"},
		api.Event{Level: api.LevelInfo, Msg: "nothing to change"},
		api.Event{Level: api.LevelDone, Summary: &api.Summary{}},
	)
}

func startEvent(start time.Time, edition string) api.Event {
	return api.Event{Level: api.LevelInfo, TS: &start, Msg: "run started", Edition: edition}
}
