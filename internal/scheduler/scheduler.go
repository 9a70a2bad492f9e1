package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"dumpkeep/internal/config"
	apperrors "dumpkeep/internal/errors"
	"dumpkeep/internal/logger"
)

// Rule is a parsed schedule. It wraps a cron schedule plus the timezone it
// evaluates in, so due times are computed in the operator's local wall clock
// rather than whatever TZ the daemon host happens to run in.
type Rule struct {
	Spec     string
	Location *time.Location

	sched cron.Schedule
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseRule resolves the schedule section into one cron rule. Precedence:
// an explicit cron expression wins, then a named or duration interval
// (combined with "at" for daily), then the default of daily at 02:00.
func ParseRule(cfg config.Schedule) (*Rule, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.TypeConfig, "Unknown timezone "+cfg.Timezone, "Use an IANA name like Europe/Berlin.")
		}
	}

	spec, err := resolveSpec(cfg)
	if err != nil {
		return nil, err
	}

	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, fmt.Sprintf("Invalid schedule %q", spec), "Use a cron expression, a duration like 6h, or daily/hourly/weekly.")
	}

	return &Rule{Spec: spec, Location: loc, sched: sched}, nil
}

func resolveSpec(cfg config.Schedule) (string, error) {
	if cfg.Cron != "" {
		return cfg.Cron, nil
	}

	at := cfg.At
	if at == "" {
		at = "02:00"
	}
	hour, minute, err := parseClock(at)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Interval)) {
	case "", "daily":
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case "hourly":
		return fmt.Sprintf("%d * * * *", minute), nil
	case "weekly":
		// Sunday, at the configured time.
		return fmt.Sprintf("%d %d * * 0", minute, hour), nil
	default:
		if d, derr := time.ParseDuration(cfg.Interval); derr == nil {
			if d < time.Minute {
				return "", apperrors.New(apperrors.TypeConfig, "Schedule interval below one minute", "Backups this frequent would overlap; use at least 1m.")
			}
			return "@every " + d.String(), nil
		}
		return "", apperrors.New(apperrors.TypeConfig, fmt.Sprintf("Invalid schedule interval %q", cfg.Interval), "Use daily, hourly, weekly, or a duration like 6h.")
	}
}

func parseClock(s string) (hour, minute int, err error) {
	if _, err := time.Parse("15:04", s); err != nil {
		return 0, 0, apperrors.New(apperrors.TypeConfig, fmt.Sprintf("Invalid schedule time %q", s), "Use 24h HH:MM, e.g. 02:00.")
	}
	fmt.Sscanf(s, "%d:%d", &hour, &minute)
	return hour, minute, nil
}

// NextDueTime computes when the rule next fires after now. Pure function;
// the daemon and the --next flag both go through it.
func (r *Rule) NextDueTime(now time.Time) time.Time {
	return r.sched.Next(now.In(r.Location))
}

// Scheduler runs a job function on a rule until stopped. Overlapping runs
// are skipped rather than queued: a dump still in flight when the next tick
// arrives means the interval is too tight, not that we should pile up work.
type Scheduler struct {
	cron   *cron.Cron
	rule   *Rule
	logger *logger.Logger
}

func New(rule *Rule, run func(context.Context), l *logger.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(rule.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc(rule.Spec, func() {
		run(context.Background())
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, fmt.Sprintf("Invalid schedule %q", rule.Spec), "")
	}

	return &Scheduler{cron: c, rule: rule, logger: l}, nil
}

func (s *Scheduler) Start() {
	if s.logger != nil {
		s.logger.Info("Scheduler started", "spec", s.rule.Spec, "timezone", s.rule.Location.String(), "next", s.rule.NextDueTime(time.Now()).Format(time.RFC3339))
	}
	s.cron.Start()
}

// Stop halts the ticker. The returned context is done once any in-flight
// run finishes, which lets the caller drain cleanly on SIGTERM.
func (s *Scheduler) Stop() context.Context {
	if s.logger != nil {
		s.logger.Info("Scheduler stopping")
	}
	return s.cron.Stop()
}
