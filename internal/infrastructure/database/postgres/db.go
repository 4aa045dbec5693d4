package postgres

import (
	"context"
	"credit-engine/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

const (
	sqlStateClassIntegrity  = "23"
	sqlStateClassConnection = "08"
)

// translateDBError classifies a pgx failure into the store error taxonomy.
// pgx.ErrNoRows becomes a plain ErrNotFound.
func translateDBError(err error, message string, logger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, message)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, sqlStateClassIntegrity):
			logger.Warn("Database constraint violation", "code", pgErr.Code, "constraint", pgErr.ConstraintName, "detail", pgErr.Detail)
			return apperrors.WrapExecutionError(fmt.Errorf("%w: %s: %w", apperrors.ErrConstraintViolation, pgErr.ConstraintName, err), message)
		case strings.HasPrefix(pgErr.Code, sqlStateClassConnection):
			logger.Error("Database connection exception", "code", pgErr.Code, "message", pgErr.Message)
			return apperrors.WrapConnectivityError(err, message)
		}
		logger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return apperrors.WrapExecutionError(err, message)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		logger.Error("Database connection failed", slog.Any("error", err))
		return apperrors.WrapConnectivityError(err, message)
	}

	logger.Error("Generic database error", slog.Any("error", err))
	return apperrors.WrapExecutionError(err, message)
}

// requireAffected turns a write that matched no row into a not-found
// execution error so the surrounding unit of work rolls back.
func requireAffected(tag pgconn.CommandTag, entity string, id int64, message string) error {
	if tag.RowsAffected() == 0 {
		return apperrors.WrapExecutionError(fmt.Errorf("%w: %s %d", apperrors.ErrNotFound, entity, id), message)
	}
	return nil
}
