// Package keepalive is the built-in keep-alive plugin: a background worker
// that nudges the pointer on an interval until an end time of day.
package keepalive

import (
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
)

// TypeID is the descriptor pluginClass of the timer.
const TypeID = "keepalive.Timer"

// Manifest holds the plugin's descriptor.
//
//go:embed plugin.yaml
var Manifest embed.FS

const (
	DefaultInterval = 30 * time.Second
	DefaultEndTime  = "18:30"
	// dayPoll is how often a finished timer checks for the next day.
	dayPoll = time.Minute
)

// Status values shown on the dashboard.
const (
	StatusReady    = "Ready"
	StatusActive   = "Active"
	StatusWaiting  = "Waiting for next day"
	StatusFinished = "Finished"
)

// Timer is the keep-alive worker.
type Timer struct {
	plugin.DashboardSettings

	pointer Pointer
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time

	mu       sync.RWMutex
	interval time.Duration
	endHour  int
	endMin   int
	resume   bool
	status   string
	moves    int
}

// Option configures a Timer.
type Option func(*Timer)

// WithPointer sets the pointer backend. Default is a 1920x1080 VirtualPointer.
func WithPointer(p Pointer) Option {
	return func(t *Timer) { t.pointer = p }
}

// WithClock replaces the time source and the wait function.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(t *Timer) {
		t.now = now
		t.after = after
	}
}

// WithInterval sets the time between nudges.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) { t.interval = d }
}

// New creates a timer ending at 18:30 with a 30 second interval.
func New(opts ...Option) *Timer {
	t := &Timer{
		pointer:  NewVirtualPointer(1920, 1080),
		now:      time.Now,
		after:    time.After,
		interval: DefaultInterval,
		status:   StatusReady,
	}
	t.endHour, t.endMin, _ = parseClock(DefaultEndTime)
	t.ResetDashboard("Keep Alive")
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Factory builds a Timer for the plugin catalog.
func Factory(plugin.Request) (any, error) {
	return New(), nil
}

func parseClock(s string) (hour, minute int, err error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if ts, perr := time.Parse(layout, strings.TrimSpace(s)); perr == nil {
			return ts.Hour(), ts.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
}

// Configure reads --end-time, --seconds and --resume-next-day. Invalid
// values are logged and the defaults kept.
func (t *Timer) Configure(values plugin.Values) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := values.String("end-time"); ok {
		h, m, err := parseClock(v)
		if err != nil {
			log.ErrorErr(log.CatPlugin, "Invalid end time format, using default", err, "plugin", TypeID)
		} else {
			t.endHour, t.endMin = h, m
			log.Info(log.CatPlugin, "End time overridden", "plugin", TypeID, "end_time", v)
		}
	}

	if v, ok := values.String("seconds"); ok {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || secs <= 0 {
			log.Error(log.CatPlugin, "Invalid seconds value, using default", "plugin", TypeID, "value", v)
		} else {
			t.interval = time.Duration(secs) * time.Second
			log.Info(log.CatPlugin, "Delay overridden", "plugin", TypeID, "seconds", secs)
		}
	}

	if values.Bool("resume-next-day") {
		t.resume = true
		log.Info(log.CatPlugin, "Resume next day enabled", "plugin", TypeID)
	}
	return nil
}

func (t *Timer) endOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.endHour, t.endMin, 0, 0, day.Location())
}

func (t *Timer) setStatus(s string) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Run nudges the pointer every interval until the end time, then either
// returns or, with resume enabled, waits for the next day and starts over.
// Returns ctx.Err() when cancelled.
func (t *Timer) Run(ctx context.Context) error {
	t.mu.RLock()
	interval, resume := t.interval, t.resume
	endHour, endMin := t.endHour, t.endMin
	t.mu.RUnlock()

	endOn := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, day.Location())
	}
	endText := fmt.Sprintf("%02d:%02d", endHour, endMin)

	w, h := t.pointer.Bounds()
	log.Info(log.CatPlugin, "Keep-alive started", "plugin", TypeID,
		"end_time", endText, "interval", interval, "resume", resume, "screen", fmt.Sprintf("%dx%d", w, h))

	for {
		t.setStatus(StatusActive)
		for now := t.now(); now.Before(endOn(now)); now = t.now() {
			select {
			case <-ctx.Done():
				t.setStatus(StatusFinished)
				return ctx.Err()
			case <-t.after(interval):
			}
			t.nudge()
		}

		if !resume {
			t.setStatus(StatusFinished)
			log.Info(log.CatPlugin, "Keep-alive reached end time", "plugin", TypeID)
			return nil
		}

		t.setStatus(StatusWaiting)
		log.Info(log.CatPlugin, "End time reached, waiting for next day", "plugin", TypeID)
		today := t.now().YearDay()
		for t.now().YearDay() == today {
			select {
			case <-ctx.Done():
				t.setStatus(StatusFinished)
				return ctx.Err()
			case <-t.after(dayPoll):
			}
		}
		log.Info(log.CatPlugin, "New day started, resuming keep-alive", "plugin", TypeID)
	}
}

func (t *Timer) nudge() {
	x, y := t.pointer.Position()
	w, h := t.pointer.Bounds()
	nx, ny := nextPosition(x, y, w, h)
	if err := t.pointer.Move(nx, ny); err != nil {
		log.ErrorErr(log.CatPlugin, "Pointer move failed", err, "plugin", TypeID)
		return
	}

	t.mu.Lock()
	t.moves++
	t.mu.Unlock()
	log.Debug(log.CatPlugin, "Updated position", "plugin", TypeID, "x", nx, "y", ny)
}

// DashboardData implements plugin.Renderer.
func (t *Timer) DashboardData() ([]plugin.Field, error) {
	now := t.now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	end := t.endOn(now)
	remaining := "Ended"
	if left := end.Sub(now); left > 0 {
		remaining = left.Truncate(time.Second).String()
	}

	x, y := t.pointer.Position()
	return []plugin.Field{
		{Key: "Status", Value: t.status},
		{Key: "End Time", Value: end.Format("15:04")},
		{Key: "Time Remaining", Value: remaining},
		{Key: "Delay", Value: t.interval.String()},
		{Key: "Moves", Value: strconv.Itoa(t.moves)},
		{Key: "Pointer", Value: fmt.Sprintf("%d, %d", x, y)},
	}, nil
}
