package credit

import (
	"context"
	"credit-engine/internal/domain/uow"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type ScoreService interface {
	CalculateAndUpdateScore(ctx context.Context, customerID int64) (*ScoreResult, error)

	GetCreditScore(ctx context.Context, customerID int64) (*CustomerScore, error)

	ListScoreAlerts(ctx context.Context, customerID int64, limit int) ([]ScoreAlert, error)
}

// Aggregator reads the scoring factors of one customer inside the caller's
// transaction and turns them into a score.
type Aggregator struct {
	repo   Repository
	logger *slog.Logger
}

func NewAggregator(repo Repository, logger *slog.Logger) *Aggregator {
	return &Aggregator{repo: repo, logger: logger.With("component", "ScoreAggregator")}
}

func (a *Aggregator) Compute(ctx context.Context, tx pgx.Tx, customerID int64) (Breakdown, error) {
	loans, err := a.repo.GetLoanSummaryInTx(ctx, tx, customerID)
	if err != nil {
		return Breakdown{}, err
	}

	balance, err := a.repo.GetCreditCardBalanceInTx(ctx, tx, customerID)
	if err != nil {
		return Breakdown{}, err
	}

	latePayments, err := a.repo.CountLatePaymentsInTx(ctx, tx, customerID)
	if err != nil {
		return Breakdown{}, err
	}

	breakdown := ComputeScore(Factors{
		Loans:             loans,
		CreditCardBalance: balance,
		LatePayments:      latePayments,
	})

	a.logger.DebugContext(ctx, "Credit score computed",
		slog.Int64("customerID", customerID),
		slog.String("loanComponent", breakdown.LoanComponent.String()),
		slog.String("utilizationComponent", breakdown.UtilizationComponent.String()),
		slog.String("latePenalty", breakdown.LatePenalty.String()),
		slog.String("rawScore", breakdown.RawScore.String()),
		slog.Int("score", breakdown.Score),
	)
	return breakdown, nil
}

// Writer persists a computed score and raises the low score alert.
type Writer struct {
	repo   Repository
	logger *slog.Logger
}

func NewWriter(repo Repository, logger *slog.Logger) *Writer {
	return &Writer{repo: repo, logger: logger.With("component", "ScoreWriter")}
}

func (w *Writer) Persist(ctx context.Context, tx pgx.Tx, customerID int64, score int) (bool, error) {
	if err := w.repo.UpdateCreditScoreInTx(ctx, tx, customerID, score); err != nil {
		return false, err
	}

	if !RequiresAlert(score) {
		return false, nil
	}

	if err := w.repo.InsertScoreAlertInTx(ctx, tx, customerID, score); err != nil {
		return false, err
	}
	w.logger.InfoContext(ctx, "Low credit score alert recorded",
		slog.Int64("customerID", customerID),
		slog.Int("score", score),
		slog.Int("threshold", AlertThreshold),
	)
	return true, nil
}

type scoreServiceImpl struct {
	unitOfWork uow.UnitOfWork
	repo       Repository
	aggregator *Aggregator
	writer     *Writer
	publisher  event.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewScoreService wires the scoring pipeline. publisher may be nil, in which
// case no alert events are emitted.
func NewScoreService(unitOfWork uow.UnitOfWork, repo Repository, publisher event.EventPublisher, logger *slog.Logger) ScoreService {
	return &scoreServiceImpl{
		unitOfWork: unitOfWork,
		repo:       repo,
		aggregator: NewAggregator(repo, logger),
		writer:     NewWriter(repo, logger),
		publisher:  publisher,
		logger:     logger.With("component", "ScoreService"),
		now:        time.Now,
	}
}

func (s *scoreServiceImpl) CalculateAndUpdateScore(ctx context.Context, customerID int64) (*ScoreResult, error) {
	if customerID <= 0 {
		return nil, apperrors.NewInvalidArgumentError("customer id must be positive, got %d", customerID)
	}
	logCtx := s.logger.With(slog.Int64("customerID", customerID))
	logCtx.InfoContext(ctx, "Calculating credit score")

	var (
		breakdown   Breakdown
		alertRaised bool
	)
	err := s.unitOfWork.WithinTx(ctx, func(tx pgx.Tx) error {
		b, err := s.aggregator.Compute(ctx, tx, customerID)
		if err != nil {
			return err
		}
		raised, err := s.writer.Persist(ctx, tx, customerID, b.Score)
		if err != nil {
			return err
		}
		breakdown, alertRaised = b, raised
		return nil
	})
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelWarn
		}
		logCtx.Log(ctx, level, "Credit score computation failed", slog.Any("error", err))
		monitoring.RecordScoreComputation("failure")
		return nil, apperrors.NewScoreComputationError(customerID, err)
	}

	monitoring.RecordScoreComputation("success")
	monitoring.RecordScore(breakdown.Score, alertRaised)

	result := &ScoreResult{
		CustomerID:   customerID,
		Score:        breakdown.Score,
		Breakdown:    breakdown,
		AlertRaised:  alertRaised,
		CalculatedAt: s.now(),
	}
	logCtx.InfoContext(ctx, "Credit score updated", slog.Int("score", result.Score), slog.Bool("alertRaised", alertRaised))

	if alertRaised {
		s.publishAlert(ctx, result)
	}
	return result, nil
}

func (s *scoreServiceImpl) publishAlert(ctx context.Context, result *ScoreResult) {
	if s.publisher == nil {
		return
	}
	evt := event.NewScoreAlertRaisedEvent(result.CustomerID, result.Score, AlertThreshold, result.CalculatedAt)
	if err := s.publisher.PublishScoreAlertRaised(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish score alert event",
			slog.Int64("customerID", result.CustomerID),
			slog.Any("error", err),
		)
	}
}

func (s *scoreServiceImpl) GetCreditScore(ctx context.Context, customerID int64) (*CustomerScore, error) {
	if customerID <= 0 {
		return nil, apperrors.NewInvalidArgumentError("customer id must be positive, got %d", customerID)
	}
	return s.repo.GetCreditScore(ctx, customerID)
}

func (s *scoreServiceImpl) ListScoreAlerts(ctx context.Context, customerID int64, limit int) ([]ScoreAlert, error) {
	if customerID <= 0 {
		return nil, apperrors.NewInvalidArgumentError("customer id must be positive, got %d", customerID)
	}
	return s.repo.ListScoreAlerts(ctx, customerID, normalizeAlertsLimit(limit))
}

// ParseCustomerID validates a customer id given as text.
func ParseCustomerID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidArgumentError("customer id must be a positive integer, got %q", raw)
	}
	return id, nil
}
