package dto

import (
	"credit-engine/internal/domain/account"
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest carries the amount as a decimal string to avoid float
// rounding on the wire.
type TransferRequest struct {
	SenderID   int64  `json:"senderId" validate:"required,gt=0"`
	ReceiverID int64  `json:"receiverId" validate:"required,gt=0,nefield=SenderID"`
	Amount     string `json:"amount" validate:"required,numeric"`
}

// ToCommand parses the amount and applies the domain transfer rules.
func (r TransferRequest) ToCommand() (account.TransferCommand, error) {
	amount, err := account.ParseAmount(r.Amount)
	if err != nil {
		return account.TransferCommand{}, err
	}
	cmd := account.TransferCommand{SenderID: r.SenderID, ReceiverID: r.ReceiverID, Amount: amount}
	if err := cmd.Validate(); err != nil {
		return account.TransferCommand{}, err
	}
	return cmd, nil
}

type TransferResponse struct {
	Status      string    `json:"status"`
	SenderID    int64     `json:"senderId"`
	ReceiverID  int64     `json:"receiverId"`
	Amount      string    `json:"amount"`
	CompletedAt time.Time `json:"completedAt"`
}

func NewTransferResponse(cmd account.TransferCommand, at time.Time) TransferResponse {
	return TransferResponse{
		Status:      "completed",
		SenderID:    cmd.SenderID,
		ReceiverID:  cmd.ReceiverID,
		Amount:      cmd.Amount.String(),
		CompletedAt: at.UTC(),
	}
}

type AccountResponse struct {
	AccountID int64  `json:"accountId"`
	Balance   string `json:"balance"`
}

func NewAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{AccountID: a.ID, Balance: formatMoney(a.Balance)}
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
