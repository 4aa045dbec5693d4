package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ScoreAlertRaisedEvent struct {
	EventID     string    `json:"eventId"`
	CustomerID  int64     `json:"customerId"`
	CreditScore int       `json:"creditScore"`
	Threshold   int       `json:"threshold"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewScoreAlertRaisedEvent(customerID int64, score, threshold int, at time.Time) ScoreAlertRaisedEvent {
	return ScoreAlertRaisedEvent{
		EventID:     uuid.NewString(),
		CustomerID:  customerID,
		CreditScore: score,
		Threshold:   threshold,
		Timestamp:   at.UTC(),
	}
}

type TransferCompletedEvent struct {
	EventID    string          `json:"eventId"`
	SenderID   int64           `json:"senderId"`
	ReceiverID int64           `json:"receiverId"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}

func NewTransferCompletedEvent(senderID, receiverID int64, amount decimal.Decimal, at time.Time) TransferCompletedEvent {
	return TransferCompletedEvent{
		EventID:    uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Timestamp:  at.UTC(),
	}
}
