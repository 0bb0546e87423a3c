package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-bank/internal/jobs"
	"github.com/odyssey-erp/odyssey-bank/internal/ledger"
)

// FoldSource yields the stored and folded balance of every account.
type FoldSource interface {
	Folds(ctx context.Context) ([]ledger.BalanceFold, error)
}

// IntegrityScanJob reports accounts whose balance disagrees with the
// transaction log. It never repairs anything.
type IntegrityScanJob struct {
	Source  FoldSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// IntegrityReport summarises one scan.
type IntegrityReport struct {
	Scanned int
	Drifts  []ledger.BalanceFold
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(source FoldSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes the scan for an asynq task.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run folds the log, logs each drifting account and counts it.
func (j *IntegrityScanJob) Run(ctx context.Context, payload IntegrityScanPayload) (report IntegrityReport, err error) {
	tracker := j.Metrics.Track(TaskLedgerIntegrityScan)
	defer func() {
		err = tracker.End(err)
	}()
	if j.Source == nil {
		return report, errors.New("integrity scan: fold source not configured")
	}

	start := time.Now()
	logger := j.logger()
	logger.Info("starting integrity scan")

	folds, err := j.Source.Folds(ctx)
	if err != nil {
		logger.Error("integrity scan failed", slog.Any("error", err))
		return report, err
	}
	if payload.Limit > 0 && len(folds) > payload.Limit {
		folds = folds[:payload.Limit]
	}
	report.Scanned = len(folds)

	surplus, deficit := 0, 0
	for _, f := range folds {
		drift := f.Drift()
		if drift.IsZero() {
			continue
		}
		report.Drifts = append(report.Drifts, f)
		if drift.IsPositive() {
			surplus++
		} else {
			deficit++
		}
		logger.Warn("balance drift detected",
			slog.Int64("account_id", f.AccountID),
			slog.String("balance", f.Balance.StringFixed(2)),
			slog.String("folded", f.Folded.StringFixed(2)),
			slog.String("drift", drift.StringFixed(2)),
		)
	}
	j.Metrics.AddDrift("surplus", surplus)
	j.Metrics.AddDrift("deficit", deficit)

	logger.Info("completed integrity scan",
		slog.Int("accounts", report.Scanned),
		slog.Int("drifts", len(report.Drifts)),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}
