package main

import (
	"bytes"
	"context"
	"credit-engine/internal/domain/account"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/pkg/apperrors"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type MockScoreService struct {
	mock.Mock
}

func (m *MockScoreService) CalculateAndUpdateScore(ctx context.Context, customerID int64) (*credit.ScoreResult, error) {
	args := m.Called(ctx, customerID)
	if r, ok := args.Get(0).(*credit.ScoreResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScoreService) GetCreditScore(ctx context.Context, customerID int64) (*credit.CustomerScore, error) {
	args := m.Called(ctx, customerID)
	if r, ok := args.Get(0).(*credit.CustomerScore); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScoreService) ListScoreAlerts(ctx context.Context, customerID int64, limit int) ([]credit.ScoreAlert, error) {
	args := m.Called(ctx, customerID, limit)
	if r, ok := args.Get(0).([]credit.ScoreAlert); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) Transfer(ctx context.Context, senderID, receiverID int64, amount decimal.Decimal) error {
	return m.Called(ctx, senderID, receiverID, amount).Error(0)
}

func (m *MockTransferService) GetAccount(ctx context.Context, accountID int64) (*account.Account, error) {
	args := m.Called(ctx, accountID)
	if r, ok := args.Get(0).(*account.Account); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type harness struct {
	app       *cli.App
	out       *bytes.Buffer
	scores    *MockScoreService
	transfers *MockTransferService
	builds    int
	closed    int
	buildErr  error
	config    string
}

func newHarness() *harness {
	h := &harness{
		out:       &bytes.Buffer{},
		scores:    new(MockScoreService),
		transfers: new(MockTransferService),
	}
	h.app = newApp(func(ctx context.Context, configPath string) (*services, func(), error) {
		h.builds++
		h.config = configPath
		if h.buildErr != nil {
			return nil, nil, h.buildErr
		}
		return &services{Score: h.scores, Transfer: h.transfers}, func() { h.closed++ }, nil
	})
	h.app.Writer = h.out
	h.app.ErrWriter = &bytes.Buffer{}
	h.app.ExitErrHandler = func(*cli.Context, error) {}
	return h
}

func (h *harness) run(args ...string) error {
	return h.app.Run(append([]string{"creditctl"}, args...))
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr cli.ExitCoder
	require.True(t, errors.As(err, &exitErr), "expected exit error, got %v", err)
	return exitErr.ExitCode()
}

func TestScoreCommand(t *testing.T) {
	t.Run("prints the recalculated score", func(t *testing.T) {
		h := newHarness()
		h.scores.On("CalculateAndUpdateScore", mock.Anything, int64(42)).
			Return(&credit.ScoreResult{CustomerID: 42, Score: 570}, nil).Once()

		require.NoError(t, h.run("score", "42"))

		assert.Equal(t, "customer 42 credit score 570\n", h.out.String())
		assert.Equal(t, 1, h.closed)
		assert.Equal(t, ".", h.config)
		h.scores.AssertExpectations(t)
	})

	t.Run("reports an alert", func(t *testing.T) {
		h := newHarness()
		h.scores.On("CalculateAndUpdateScore", mock.Anything, int64(7)).
			Return(&credit.ScoreResult{CustomerID: 7, Score: 370, AlertRaised: true}, nil).Once()

		require.NoError(t, h.run("--config", "/etc/credit-engine", "score", "7"))

		assert.Contains(t, h.out.String(), "customer 7 credit score 370")
		assert.Contains(t, h.out.String(), "low score alert recorded (threshold 500)")
		assert.Equal(t, "/etc/credit-engine", h.config)
	})

	t.Run("invalid ids never open the store", func(t *testing.T) {
		for _, args := range [][]string{{"score"}, {"score", "abc"}, {"score", "0"}, {"score", "1", "2"}} {
			h := newHarness()

			err := h.run(args...)

			assert.Equal(t, exitUsageError, exitCode(t, err), "%v", args)
			assert.Zero(t, h.builds, "%v", args)
		}
	})

	t.Run("service failure", func(t *testing.T) {
		h := newHarness()
		h.scores.On("CalculateAndUpdateScore", mock.Anything, int64(404)).
			Return(nil, fmt.Errorf("%w: customer 404", apperrors.ErrNotFound)).Once()

		err := h.run("score", "404")

		assert.Equal(t, exitRuntimeError, exitCode(t, err))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorContains(t, err, "customer 404")
		assert.Equal(t, 1, h.closed)
	})

	t.Run("store unavailable", func(t *testing.T) {
		h := newHarness()
		h.buildErr = apperrors.WrapConnectivityError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "failed to ping database on connect")

		err := h.run("score", "1")

		assert.Equal(t, exitRuntimeError, exitCode(t, err))
		assert.ErrorIs(t, err, apperrors.ErrStoreConnectivity)
		assert.ErrorContains(t, err, "failed to ping database on connect")
		assert.Zero(t, h.closed)
	})
}

func TestTransferCommand(t *testing.T) {
	t.Run("transfers the amount", func(t *testing.T) {
		h := newHarness()
		h.transfers.On("Transfer", mock.Anything, int64(1), int64(2), decimal.RequireFromString("25.50")).Return(nil).Once()

		require.NoError(t, h.run("transfer", "1", "2", "25.50"))

		assert.Equal(t, "transferred 25.5 from account 1 to account 2\n", h.out.String())
		assert.Equal(t, 1, h.closed)
		h.transfers.AssertExpectations(t)
	})

	t.Run("invalid arguments never open the store", func(t *testing.T) {
		for _, args := range [][]string{
			{"transfer", "1", "2"},
			{"transfer", "1", "1", "10"},
			{"transfer", "1", "2", "0"},
			{"transfer", "1", "2", "ten"},
			{"transfer", "x", "2", "10"},
		} {
			h := newHarness()

			err := h.run(args...)

			assert.Equal(t, exitUsageError, exitCode(t, err), "%v", args)
			assert.Zero(t, h.builds, "%v", args)
		}
	})

	t.Run("rolled back transfer", func(t *testing.T) {
		h := newHarness()
		h.transfers.On("Transfer", mock.Anything, int64(1), int64(99), mock.Anything).
			Return(apperrors.NewTransferError(1, 99, fmt.Errorf("%w: account 99", apperrors.ErrNotFound))).Once()

		err := h.run("transfer", "1", "99", "5")

		assert.Equal(t, exitRuntimeError, exitCode(t, err))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Empty(t, h.out.String())
	})
}
