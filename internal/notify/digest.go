package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/taskdesk/internal/models"
)

// DefaultDigestSchedule fires every day at 09:00.
const DefaultDigestSchedule = "0 9 * * *"

// cronParser accepts standard 5-field cron expressions (minute, hour, dom,
// month, dow) and @-descriptors, the same set cron.ParseStandard accepts when
// the config is validated.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TaskSource yields the tasks the reminder is about.
type TaskSource interface {
	UnassignedActive(ctx context.Context) ([]models.Task, error)
}

// Submitter accepts messages without blocking.
type Submitter interface {
	Submit(m Message) bool
}

// Digest periodically reminds about active tasks without an assignee.
type Digest struct {
	tasks TaskSource
	out   Submitter
	log   *slog.Logger
	cron  *cron.Cron
}

// NewDigest returns a digest reading from tasks and submitting to out.
func NewDigest(tasks TaskSource, out Submitter, log *slog.Logger) *Digest {
	if log == nil {
		log = slog.Default()
	}
	return &Digest{
		tasks: tasks,
		out:   out,
		log:   log,
		cron:  cron.New(cron.WithParser(cronParser)),
	}
}

// RunOnce submits the reminder and reports whether there was anything to
// remind about.
func (d *Digest) RunOnce(ctx context.Context) (bool, error) {
	tasks, err := d.tasks.UnassignedActive(ctx)
	if err != nil {
		return false, fmt.Errorf("notify: digest: %w", err)
	}
	if len(tasks) == 0 {
		return false, nil
	}
	if !d.out.Submit(DigestMessage(tasks)) {
		return false, fmt.Errorf("notify: digest: message for %d tasks not accepted", len(tasks))
	}
	return true, nil
}

// Schedule registers the reminder on spec, a 5-field cron expression. An
// empty spec uses DefaultDigestSchedule.
func (d *Digest) Schedule(spec string) error {
	if spec == "" {
		spec = DefaultDigestSchedule
	}
	_, err := d.cron.AddFunc(spec, func() {
		sent, err := d.RunOnce(context.Background())
		if err != nil {
			d.log.Error("digest failed", "error", err)
			return
		}
		d.log.Info("digest run", "sent", sent)
	})
	if err != nil {
		return fmt.Errorf("notify: schedule digest %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (d *Digest) Start() { d.cron.Start() }

// Stop halts the scheduler; the returned context is done when a running
// reminder has finished.
func (d *Digest) Stop() context.Context { return d.cron.Stop() }
