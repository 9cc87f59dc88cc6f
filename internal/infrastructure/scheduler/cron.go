package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"ThreatScanner/internal/ports"
)

const defaultHour = 6

// DailyScheduler fires a job once per day at a fixed wall-clock time in the
// configured location. Only the minute and hour fields of the cron
// expression are honored; the batch workload has no use for finer schedules.
type DailyScheduler struct {
	minute int
	hour   int
	loc    *time.Location
	stop   chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler builds a scheduler from a five-field cron expression.
func NewDailyScheduler(spec string, loc *time.Location) *DailyScheduler {
	if loc == nil {
		loc = time.UTC
	}
	minute, hour := parseDailySpec(spec)
	return &DailyScheduler{minute: minute, hour: hour, loc: loc}
}

// parseDailySpec reads the minute and hour fields, falling back to 06:00 on
// anything it cannot read.
func parseDailySpec(spec string) (minute, hour int) {
	hour = defaultHour
	fields := strings.Fields(spec)
	if len(fields) < 2 {
		return minute, hour
	}
	if v, err := strconv.Atoi(fields[0]); err == nil && v >= 0 && v < 60 {
		minute = v
	}
	if v, err := strconv.Atoi(fields[1]); err == nil && v >= 0 && v < 24 {
		hour = v
	}
	return minute, hour
}

// next returns the first fire time strictly after now.
func (d *DailyScheduler) next(now time.Time) time.Time {
	local := now.In(d.loc)
	fire := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !fire.After(local) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Start arms the timer. Calling Start again on a running scheduler is a
// no-op.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || d.stop != nil {
		return nil
	}

	// The goroutine reads a local copy of the channel; Stop may nil the
	// field concurrently.
	stop := make(chan struct{})
	d.stop = stop
	go func() {
		timer := time.NewTimer(time.Until(d.next(time.Now())))
		defer timer.Stop()
		for {
			select {
			case t := <-timer.C:
				job(t)
				timer.Reset(time.Until(d.next(time.Now())))
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the timer goroutine.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	return nil
}
