package main

import (
	"context"
	"credit-engine/internal/config"
	"credit-engine/internal/domain/account"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/infrastructure/database/postgres"
	"credit-engine/internal/infrastructure/logging"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

const (
	exitRuntimeError = 1
	exitUsageError   = 2
)

type services struct {
	Score    credit.ScoreService
	Transfer account.TransferService
}

// commandError carries the exit code while keeping the cause inspectable.
type commandError struct {
	err  error
	code int
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }
func (e *commandError) ExitCode() int { return e.code }

func runtimeError(err error) error {
	return &commandError{err: err, code: exitRuntimeError}
}

// serviceBuilder opens the store and returns the services plus a cleanup func.
type serviceBuilder func(ctx context.Context, configPath string) (*services, func(), error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(buildServices).RunContext(ctx, os.Args); err != nil {
		os.Exit(exitRuntimeError)
	}
}

func newApp(build serviceBuilder) *cli.App {
	return &cli.App{
		Name:  "creditctl",
		Usage: "recalculate credit scores and move balances from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   ".",
				Usage:   "directory containing config.yml",
				EnvVars: []string{"CREDIT_ENGINE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "score",
				Usage:     "recalculate and store a customer's credit score",
				ArgsUsage: "<customer-id>",
				Action:    scoreAction(build),
			},
			{
				Name:      "transfer",
				Usage:     "move an amount from one account to another",
				ArgsUsage: "<sender-id> <receiver-id> <amount>",
				Action:    transferAction(build),
			},
		},
	}
}

func scoreAction(build serviceBuilder) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit(fmt.Sprintf("usage: %s score <customer-id>", c.App.Name), exitUsageError)
		}
		customerID, err := credit.ParseCustomerID(c.Args().First())
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		svc, cleanup, err := build(c.Context, c.String("config"))
		if err != nil {
			return runtimeError(err)
		}
		defer cleanup()

		result, err := svc.Score.CalculateAndUpdateScore(c.Context, customerID)
		if err != nil {
			return runtimeError(err)
		}

		fmt.Fprintf(c.App.Writer, "customer %d credit score %d\n", result.CustomerID, result.Score)
		if result.AlertRaised {
			fmt.Fprintf(c.App.Writer, "low score alert recorded (threshold %d)\n", credit.AlertThreshold)
		}
		return nil
	}
}

func transferAction(build serviceBuilder) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.Exit(fmt.Sprintf("usage: %s transfer <sender-id> <receiver-id> <amount>", c.App.Name), exitUsageError)
		}
		cmd, err := account.ParseTransferArgs(c.Args().Slice())
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}

		svc, cleanup, err := build(c.Context, c.String("config"))
		if err != nil {
			return runtimeError(err)
		}
		defer cleanup()

		if err := svc.Transfer.Transfer(c.Context, cmd.SenderID, cmd.ReceiverID, cmd.Amount); err != nil {
			return runtimeError(err)
		}

		fmt.Fprintf(c.App.Writer, "transferred %s from account %d to account %d\n", cmd.Amount.String(), cmd.SenderID, cmd.ReceiverID)
		return nil
	}
}

func buildServices(ctx context.Context, configPath string) (*services, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogger(cfg.Logger)

	pool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}

	unitOfWork := postgres.NewUnitOfWork(pool, logger)
	svc := &services{
		Score:    credit.NewScoreService(unitOfWork, postgres.NewCreditRepository(pool, logger), nil, logger),
		Transfer: account.NewTransferService(unitOfWork, postgres.NewAccountRepository(pool, logger), nil, logger),
	}
	cleanup := func() {
		logger.Debug("Closing database connection pool", slog.String("command", "creditctl"))
		pool.Close()
	}
	return svc, cleanup, nil
}
