package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
)

// Refresher runs one alert refresh pass
type Refresher interface {
	Run(ctx context.Context) (alerts.Delta, error)
}

// AlertRefreshJob runs the alert refresh on a cron schedule. A tick that
// fires while the previous pass is still running is skipped.
type AlertRefreshJob struct {
	refresher Refresher
	timeout   time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// NewAlertRefreshJob creates a job; each pass is bounded by timeout
func NewAlertRefreshJob(refresher Refresher, timeout time.Duration) *AlertRefreshJob {
	return &AlertRefreshJob{refresher: refresher, timeout: timeout}
}

// RunOnce performs one pass and logs its outcome
func (j *AlertRefreshJob) RunOnce(ctx context.Context) (alerts.Delta, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	delta, err := j.refresher.Run(ctx)
	if err != nil {
		logger.Error("alert refresh failed", zap.Error(err))
		return delta, err
	}
	if len(delta.Failed) > 0 {
		logger.Warn("alert refresh completed with failed trigger types", zap.Strings("failed", delta.Failed))
	}
	return delta, nil
}

// Start schedules the job. schedule uses cron syntax or descriptors such
// as "@every 5m".
func (j *AlertRefreshJob) Start(schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return fmt.Errorf("alert refresh job already started")
	}

	log := cronLogger{}
	c := cron.New(cron.WithChain(
		cron.Recover(log),
		cron.SkipIfStillRunning(log),
	))
	if _, err := c.AddFunc(schedule, func() {
		_, _ = j.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	j.cron = c

	logger.Info("alert refresh job started", zap.String("schedule", schedule))
	return nil
}

// Stop stops scheduling and waits for a running pass, or for ctx to end
func (j *AlertRefreshJob) Stop(ctx context.Context) {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
		logger.Info("alert refresh job stopped")
	case <-ctx.Done():
		logger.Warn("alert refresh job stop timed out")
	}
}

// cronLogger routes cron's own messages to the application logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.S().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.S().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
