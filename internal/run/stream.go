// Package run produces the progress stream of a CI run.
//
// A run is a Source of events pumped into a Sink by Stream. Stream owns
// ordering, pacing and termination: every stream it delivers ends with
// exactly one done event carrying a summary, whatever the source does.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/flo-mic/stackdash/internal/api"
)

// Source yields the events of one run. It is lazy, finite and cannot be
// restarted. Next returns io.EOF once the source is exhausted.
type Source interface {
	Next(ctx context.Context) (api.Event, error)
}

// Progresser is implemented by sources that keep a running summary, so a
// failure mid-run can still report what was done before it.
type Progresser interface {
	Progress() api.Summary
}

// Sink receives events in order. An error from Send means the consumer
// is gone and stops the run.
type Sink interface {
	Send(api.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(api.Event) error

func (f SinkFunc) Send(ev api.Event) error { return f(ev) }

// Options tune delivery.
type Options struct {
	// Interval is the minimum spacing between two emitted events.
	Interval time.Duration
	// Buffer is how many events may wait for a slow consumer before the
	// producer blocks.
	Buffer int
}

const (
	DefaultInterval = 200 * time.Millisecond
	DefaultBuffer   = 16
)

func (o Options) withDefaults() Options {
	if o.Interval < 0 {
		o.Interval = 0
	}
	if o.Buffer < 1 {
		o.Buffer = DefaultBuffer
	}
	return o
}

// Stream pumps src into sink until the done event has been delivered,
// the sink fails or ctx is cancelled. It returns the summary of the done
// event that reached the sink.
func Stream(ctx context.Context, src Source, sink Sink, opts Options) (api.Summary, error) {
	opts = opts.withDefaults()
	ch := make(chan api.Event, opts.Buffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(ch)
		return produce(gctx, src, ch, opts.Interval)
	})

	var summary api.Summary
	var delivered bool
	g.Go(func() error {
		for ev := range ch {
			if err := sink.Send(ev); err != nil {
				return fmt.Errorf("sending event %d: %w", ev.Seq, err)
			}
			if ev.Terminal() {
				summary, delivered = *ev.Summary, true
			}
		}
		return nil
	})

	err := g.Wait()
	if err == nil && !delivered {
		err = errors.New("run ended without a done event")
	}
	return summary, err
}

func produce(ctx context.Context, src Source, out chan<- api.Event, interval time.Duration) error {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	limiter := rate.NewLimiter(limit, 1)
	seq := 0

	emit := func(ev api.Event) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		seq++
		ev.Seq = seq
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		ev, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return emit(doneEvent(progress(src)))
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s := progress(src)
			s.Failed++
			if err := emit(api.Event{Level: api.LevelError, Msg: err.Error()}); err != nil {
				return err
			}
			return emit(doneEvent(s))
		case ev.Terminal():
			if ev.Summary == nil {
				s := progress(src)
				ev.Summary = &s
			}
			// Anything the source would yield after this is dropped.
			return emit(ev)
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
}

func progress(src Source) api.Summary {
	if p, ok := src.(Progresser); ok {
		return p.Progress()
	}
	return api.Summary{}
}

func doneEvent(s api.Summary) api.Event {
	return api.Event{Level: api.LevelDone, Summary: &s}
}
