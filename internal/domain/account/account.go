package account

import (
	"credit-engine/internal/pkg/apperrors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID      int64
	Balance decimal.Decimal
}

type TransferCommand struct {
	SenderID   int64
	ReceiverID int64
	Amount     decimal.Decimal
}

// ParseTransferArgs reads "<sender> <receiver> <amount>" style arguments.
// Extra arguments are ignored.
func ParseTransferArgs(args []string) (TransferCommand, error) {
	if len(args) < 3 {
		return TransferCommand{}, apperrors.NewInvalidArgumentError("expected sender, receiver and amount, got %d argument(s)", len(args))
	}

	senderID, err := parseAccountID("sender", args[0])
	if err != nil {
		return TransferCommand{}, err
	}
	receiverID, err := parseAccountID("receiver", args[1])
	if err != nil {
		return TransferCommand{}, err
	}
	amount, err := ParseAmount(args[2])
	if err != nil {
		return TransferCommand{}, err
	}

	cmd := TransferCommand{SenderID: senderID, ReceiverID: receiverID, Amount: amount}
	if err := cmd.Validate(); err != nil {
		return TransferCommand{}, err
	}
	return cmd, nil
}

func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperrors.NewInvalidArgumentError("amount %q is not numeric", raw)
	}
	return amount, nil
}

func parseAccountID(role, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.NewInvalidArgumentError("%s account id %q is not an integer", role, raw)
	}
	return id, nil
}

func (c TransferCommand) Validate() error {
	switch {
	case !c.Amount.IsPositive():
		return apperrors.NewInvalidArgumentError("amount must be greater than zero, got %s", c.Amount)
	case c.SenderID <= 0:
		return apperrors.NewInvalidArgumentError("sender account id must be positive, got %d", c.SenderID)
	case c.ReceiverID <= 0:
		return apperrors.NewInvalidArgumentError("receiver account id must be positive, got %d", c.ReceiverID)
	case c.SenderID == c.ReceiverID:
		return apperrors.NewInvalidArgumentError("sender and receiver must be different accounts")
	}
	return nil
}
