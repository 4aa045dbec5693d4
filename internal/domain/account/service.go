package account

import (
	"context"
	"credit-engine/internal/domain/uow"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TransferService interface {
	Transfer(ctx context.Context, senderID, receiverID int64, amount decimal.Decimal) error

	GetAccount(ctx context.Context, accountID int64) (*Account, error)
}

type transferServiceImpl struct {
	unitOfWork uow.UnitOfWork
	repo       Repository
	publisher  event.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewTransferService(unitOfWork uow.UnitOfWork, repo Repository, publisher event.EventPublisher, logger *slog.Logger) TransferService {
	return &transferServiceImpl{
		unitOfWork: unitOfWork,
		repo:       repo,
		publisher:  publisher,
		logger:     logger.With("component", "TransferService"),
		now:        time.Now,
	}
}

// Transfer debits the sender and credits the receiver in one transaction.
// Balances are not checked for sufficiency.
func (s *transferServiceImpl) Transfer(ctx context.Context, senderID, receiverID int64, amount decimal.Decimal) error {
	cmd := TransferCommand{SenderID: senderID, ReceiverID: receiverID, Amount: amount}
	if err := cmd.Validate(); err != nil {
		monitoring.RecordTransfer("rejected")
		return err
	}

	logCtx := s.logger.With(
		slog.Int64("senderID", senderID),
		slog.Int64("receiverID", receiverID),
		slog.String("amount", amount.String()),
	)
	logCtx.InfoContext(ctx, "Starting balance transfer")

	err := s.unitOfWork.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.DebitInTx(ctx, tx, senderID, amount); err != nil {
			return err
		}
		return s.repo.CreditInTx(ctx, tx, receiverID, amount)
	})
	if err != nil {
		logCtx.ErrorContext(ctx, "Balance transfer failed, transaction rolled back", slog.Any("error", err))
		monitoring.RecordTransfer("failed")
		return apperrors.NewTransferError(senderID, receiverID, err)
	}

	monitoring.RecordTransfer("completed")
	logCtx.InfoContext(ctx, "Balance transfer committed")

	if s.publisher != nil {
		evt := event.NewTransferCompletedEvent(senderID, receiverID, amount, s.now())
		if err := s.publisher.PublishTransferCompleted(ctx, evt); err != nil {
			logCtx.WarnContext(ctx, "Failed to publish transfer completed event", slog.Any("error", err))
		}
	}
	return nil
}

func (s *transferServiceImpl) GetAccount(ctx context.Context, accountID int64) (*Account, error) {
	if accountID <= 0 {
		return nil, apperrors.NewInvalidArgumentError("account id must be positive, got %d", accountID)
	}
	return s.repo.GetAccount(ctx, accountID)
}
