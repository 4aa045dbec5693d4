package dto

import (
	"credit-engine/internal/domain/account"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/pkg/apperrors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_TransferRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       TransferRequest
		wantField string
		wantMsg   string
	}{
		{"valid", TransferRequest{SenderID: 1, ReceiverID: 2, Amount: "100.0"}, "", ""},
		{"missing sender", TransferRequest{ReceiverID: 2, Amount: "1"}, "senderId", "is required"},
		{"negative receiver", TransferRequest{SenderID: 1, ReceiverID: -2, Amount: "1"}, "receiverId", "must be greater than 0"},
		{"same account", TransferRequest{SenderID: 3, ReceiverID: 3, Amount: "1"}, "receiverId", "must differ from senderID"},
		{"missing amount", TransferRequest{SenderID: 1, ReceiverID: 2}, "amount", "is required"},
		{"non numeric amount", TransferRequest{SenderID: 1, ReceiverID: 2, Amount: "ten"}, "amount", "must be a decimal number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, apperrors.ErrValidation)
			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Equal(t, tt.wantMsg, vErr.Message)
		})
	}
}

func TestValidate_TokenRequest(t *testing.T) {
	assert.NoError(t, Validate(TokenRequest{Username: "ops"}))

	err := Validate(TokenRequest{})
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "username", vErr.Field)
}

func TestTransferRequest_ToCommand(t *testing.T) {
	cmd, err := TransferRequest{SenderID: 1, ReceiverID: 2, Amount: "100.0"}.ToCommand()
	require.NoError(t, err)
	assert.True(t, cmd.Amount.Equal(decimal.NewFromInt(100)))

	_, err = TransferRequest{SenderID: 1, ReceiverID: 2, Amount: "-5"}.ToCommand()
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = TransferRequest{SenderID: 1, ReceiverID: 2, Amount: "0"}.ToCommand()
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestNewScoreResultResponse(t *testing.T) {
	breakdown := credit.ComputeScore(credit.Factors{
		Loans: credit.LoanSummary{
			TotalLoanAmount:    decimal.NewFromInt(10000),
			TotalRepayment:     decimal.NewFromInt(5000),
			OutstandingBalance: decimal.NewFromInt(5000),
		},
		CreditCardBalance: decimal.NewFromInt(1000),
		LatePayments:      2,
	})
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("WIB", 7*3600))

	resp := NewScoreResultResponse(&credit.ScoreResult{CustomerID: 2, Score: breakdown.Score, Breakdown: breakdown, AlertRaised: true, CalculatedAt: at})

	assert.Equal(t, 370, resp.CreditScore)
	assert.True(t, resp.AlertRaised)
	assert.Equal(t, time.UTC, resp.CalculatedAt.Location())
	assert.Equal(t, "200.00", resp.Breakdown.LoanComponent)
	assert.Equal(t, "270.00", resp.Breakdown.UtilizationComponent)
	assert.Equal(t, "100.00", resp.Breakdown.LatePenalty)
	assert.Equal(t, "10000.00", resp.Breakdown.TotalLoanAmount)
}

func TestNewAccountResponse(t *testing.T) {
	resp := NewAccountResponse(&account.Account{ID: 7, Balance: decimal.RequireFromString("900.5")})

	assert.Equal(t, int64(7), resp.AccountID)
	assert.Equal(t, "900.50", resp.Balance)
}

func TestNewScoreAlertsResponse_Empty(t *testing.T) {
	resp := NewScoreAlertsResponse(nil)

	assert.NotNil(t, resp)
	assert.Empty(t, resp)
}
