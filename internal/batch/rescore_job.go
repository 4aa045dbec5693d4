package batch

import (
	"context"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultRescoreConcurrency = 8

// CustomerLister lists the customers the job should rescore.
type CustomerLister interface {
	ListCustomerIDs(ctx context.Context) ([]int64, error)
}

// RescoreSummary reports the outcome of one run.
type RescoreSummary struct {
	Total        int
	Rescored     int
	Alerts       int
	Skipped      int
	Failed       int
	NotAttempted int
}

// RescoreJob recomputes every customer's score. Each customer gets its own
// transaction, so one failure never rolls back another customer's score.
type RescoreJob struct {
	customers   CustomerLister
	scores      credit.ScoreService
	concurrency int
	logger      *slog.Logger
}

func NewRescoreJob(customers CustomerLister, scores credit.ScoreService, concurrency int, logger *slog.Logger) *RescoreJob {
	if customers == nil || scores == nil || logger == nil {
		panic("RescoreJob dependencies cannot be nil")
	}
	if concurrency <= 0 {
		concurrency = defaultRescoreConcurrency
	}
	return &RescoreJob{
		customers:   customers,
		scores:      scores,
		concurrency: concurrency,
		logger:      logger.With("job", "Rescore"),
	}
}

func (j *RescoreJob) Run(ctx context.Context) error {
	_, err := j.RunWithSummary(ctx)
	return err
}

func (j *RescoreJob) RunWithSummary(ctx context.Context) (RescoreSummary, error) {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting credit score rescoring job.", slog.Int("concurrency", j.concurrency))

	ids, err := j.customers.ListCustomerIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to list customers, aborting job.", slog.Any("error", err))
		return RescoreSummary{}, fmt.Errorf("cannot run rescoring job, failed to list customers: %w", err)
	}
	if len(ids) == 0 {
		j.logger.InfoContext(ctx, "No customers found to rescore.")
		return RescoreSummary{}, nil
	}

	var rescored, alerts, skipped, failed, attempted, cancelled atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(j.concurrency)

	for _, customerID := range ids {
		if ctx.Err() != nil {
			break
		}
		attempted.Add(1)
		g.Go(func() error {
			if ctx.Err() != nil {
				cancelled.Add(1)
				return nil
			}
			result, err := j.scores.CalculateAndUpdateScore(ctx, customerID)
			switch {
			case err == nil:
				rescored.Add(1)
				if result.AlertRaised {
					alerts.Add(1)
				}
			case errors.Is(err, apperrors.ErrNotFound):
				j.logger.WarnContext(ctx, "Customer disappeared before rescoring", slog.Int64("customerID", customerID))
				skipped.Add(1)
			default:
				j.logger.ErrorContext(ctx, "Failed to rescore customer", slog.Int64("customerID", customerID), slog.Any("error", err))
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := RescoreSummary{
		Total:        len(ids),
		Rescored:     int(rescored.Load()),
		Alerts:       int(alerts.Load()),
		Skipped:      int(skipped.Load()),
		Failed:       int(failed.Load()),
		NotAttempted: len(ids) - int(attempted.Load()) + int(cancelled.Load()),
	}
	monitoring.RecordRescore("rescored", summary.Rescored)
	monitoring.RecordRescore("skipped", summary.Skipped)
	monitoring.RecordRescore("failed", summary.Failed)

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("total_customers", summary.Total),
		slog.Int("rescored", summary.Rescored),
		slog.Int("alerts_raised", summary.Alerts),
		slog.Int("skipped", summary.Skipped),
		slog.Int("errors_encountered", summary.Failed),
		slog.Int("not_attempted", summary.NotAttempted),
	)

	if summary.NotAttempted > 0 {
		summaryLog.WarnContext(ctx, "Credit score rescoring job interrupted.")
		return summary, fmt.Errorf("rescoring interrupted with %d customers not attempted: %w", summary.NotAttempted, ctx.Err())
	}
	if summary.Failed > 0 {
		summaryLog.WarnContext(ctx, "Credit score rescoring job finished with errors.")
		return summary, fmt.Errorf("rescoring completed with %d errors", summary.Failed)
	}
	summaryLog.InfoContext(ctx, "Credit score rescoring job finished successfully.")
	return summary, nil
}
