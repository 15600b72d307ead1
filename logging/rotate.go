package logging

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/user/layered-api-go/apperror"
	"github.com/user/layered-api-go/config"
)

const megabyte = 1024 * 1024

// newRotatingWriter opens a log file at path that rotates according to cfg.RotationType:
// "size" rolls over at MaxBytes keeping BackupCount files, "time" rolls over at
// RotationWhen/RotationInterval boundaries keeping RotationBackupCount files, and "both"
// applies both triggers.
func newRotatingWriter(path string, cfg config.LoggingConfig) (io.WriteCloser, error) {
	switch strings.ToLower(cfg.RotationType) {
	case config.RotateBySize, "":
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    sizeInMegabytes(cfg.MaxBytes),
			MaxBackups: cfg.BackupCount,
		}, nil
	case config.RotateByTime:
		// lumberjack always rotates on size too; an effectively unlimited size leaves only the clock.
		return newTimedWriter(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    math.MaxInt32,
			MaxBackups: cfg.RotationBackupCount,
		}, cfg.RotationWhen, cfg.RotationInterval, time.Now)
	case config.RotateByBoth:
		return newTimedWriter(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    sizeInMegabytes(cfg.MaxBytes),
			MaxBackups: cfg.RotationBackupCount,
		}, cfg.RotationWhen, cfg.RotationInterval, time.Now)
	default:
		return nil, apperror.NewConfigError(fmt.Sprintf("unknown rotation type %q", cfg.RotationType), nil)
	}
}

// sizeInMegabytes converts a byte limit to lumberjack's megabyte granularity, rounding up
// and never going below one megabyte.
func sizeInMegabytes(maxBytes int64) int {
	mb := (maxBytes + megabyte - 1) / megabyte
	if mb < 1 {
		return 1
	}
	if mb > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(mb)
}

// rotationSchedule computes the next rollover instant after a given time.
type rotationSchedule func(now time.Time) time.Time

// parseSchedule understands the classic rollover designators: S, M, H, D (every interval
// seconds/minutes/hours/days), "midnight" (every interval days at 00:00) and W0-W6 (weekly
// at midnight, Monday is W0).
func parseSchedule(when string, interval int) (rotationSchedule, error) {
	if interval < 1 {
		interval = 1
	}
	n := time.Duration(interval)

	switch w := strings.ToUpper(strings.TrimSpace(when)); {
	case w == "S":
		return func(now time.Time) time.Time { return now.Add(n * time.Second) }, nil
	case w == "M":
		return func(now time.Time) time.Time { return now.Add(n * time.Minute) }, nil
	case w == "H":
		return func(now time.Time) time.Time { return now.Add(n * time.Hour) }, nil
	case w == "D":
		return func(now time.Time) time.Time { return now.Add(n * 24 * time.Hour) }, nil
	case w == "MIDNIGHT" || w == "":
		return func(now time.Time) time.Time {
			return startOfDay(now).AddDate(0, 0, interval)
		}, nil
	case len(w) == 2 && w[0] == 'W':
		day, err := strconv.Atoi(w[1:])
		if err != nil || day < 0 || day > 6 {
			return nil, apperror.NewConfigError(fmt.Sprintf("invalid weekly rotation %q (expected W0-W6)", when), err)
		}
		// W0 is Monday; time.Weekday counts from Sunday.
		target := time.Weekday((day + 1) % 7)
		return func(now time.Time) time.Time {
			days := (int(target) - int(now.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			return startOfDay(now).AddDate(0, 0, days)
		}, nil
	default:
		return nil, apperror.NewConfigError(fmt.Sprintf("invalid rotation_when %q", when), nil)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// timedWriter rotates the underlying lumberjack file whenever a write crosses the next
// scheduled boundary.
type timedWriter struct {
	mu       sync.Mutex
	out      *lumberjack.Logger
	schedule rotationSchedule
	now      func() time.Time
	next     time.Time
}

func newTimedWriter(out *lumberjack.Logger, when string, interval int, now func() time.Time) (*timedWriter, error) {
	schedule, err := parseSchedule(when, interval)
	if err != nil {
		return nil, err
	}
	return &timedWriter{
		out:      out,
		schedule: schedule,
		now:      now,
		next:     schedule(now()),
	}, nil
}

func (t *timedWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now := t.now(); !now.Before(t.next) {
		if err := t.out.Rotate(); err != nil {
			return 0, err
		}
		t.next = t.schedule(now)
	}
	return t.out.Write(p)
}

func (t *timedWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.Close()
}
