package postgres

import (
	"context"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/infrastructure/monitoring"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	loanSummarySQL = `
        SELECT COALESCE(ROUND(SUM(loan_amount), 2), 0) AS total_loan_amount,
               COALESCE(ROUND(SUM(repayment_amount), 2), 0) AS total_repayment,
               COALESCE(ROUND(SUM(outstanding_balance), 2), 0) AS outstanding_loan_balance
        FROM loans WHERE customer_id = $1`

	creditCardBalanceSQL = `
        SELECT COALESCE(ROUND(SUM(balance), 2), 0) AS credit_card_balance
        FROM credit_cards WHERE customer_id = $1`

	latePaymentCountSQL = `
        SELECT COUNT(*) AS late_pay_count
        FROM payments WHERE customer_id = $1 AND status = 'Late'`

	updateCreditScoreSQL = `UPDATE customers SET credit_score = $1 WHERE id = $2`

	insertScoreAlertSQL = `
        INSERT INTO credit_score_alerts (customer_id, credit_score, created_at)
        VALUES ($1, $2, NOW())`

	getCreditScoreSQL = `SELECT id, credit_score FROM customers WHERE id = $1`

	listScoreAlertsSQL = `
        SELECT customer_id, credit_score, created_at
        FROM credit_score_alerts
        WHERE customer_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	listCustomerIDsSQL = `SELECT id FROM customers ORDER BY id`
)

type CreditRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ credit.Repository = (*CreditRepository)(nil)

func NewCreditRepository(db DBPool, logger *slog.Logger) *CreditRepository {
	return &CreditRepository{db: db, logger: logger.With("component", "CreditRepository")}
}

func (r *CreditRepository) GetLoanSummaryInTx(ctx context.Context, tx pgx.Tx, customerID int64) (credit.LoanSummary, error) {
	var summary credit.LoanSummary
	startTime := time.Now()
	err := tx.QueryRow(ctx, loanSummarySQL, customerID).Scan(
		&summary.TotalLoanAmount, &summary.TotalRepayment, &summary.OutstandingBalance,
	)
	r.record("GetLoanSummary", err, startTime)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to aggregate loans", "customer_id", customerID, "error", err)
		return credit.LoanSummary{}, translateDBError(err, "failed to aggregate loans", r.logger)
	}
	return summary, nil
}

func (r *CreditRepository) GetCreditCardBalanceInTx(ctx context.Context, tx pgx.Tx, customerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	startTime := time.Now()
	err := tx.QueryRow(ctx, creditCardBalanceSQL, customerID).Scan(&balance)
	r.record("GetCreditCardBalance", err, startTime)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to aggregate credit card balance", "customer_id", customerID, "error", err)
		return decimal.Zero, translateDBError(err, "failed to aggregate credit card balance", r.logger)
	}
	return balance, nil
}

func (r *CreditRepository) CountLatePaymentsInTx(ctx context.Context, tx pgx.Tx, customerID int64) (int64, error) {
	var count int64
	startTime := time.Now()
	err := tx.QueryRow(ctx, latePaymentCountSQL, customerID).Scan(&count)
	r.record("CountLatePayments", err, startTime)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to count late payments", "customer_id", customerID, "error", err)
		return 0, translateDBError(err, "failed to count late payments", r.logger)
	}
	return count, nil
}

func (r *CreditRepository) UpdateCreditScoreInTx(ctx context.Context, tx pgx.Tx, customerID int64, score int) error {
	cmdTag, err := tx.Exec(ctx, updateCreditScoreSQL, score, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update credit score", "customer_id", customerID, "score", score, "error", err)
		return translateDBError(err, "failed to update credit score", r.logger)
	}
	if err := requireAffected(cmdTag, "customer", customerID, "credit score update affected zero rows"); err != nil {
		r.logger.WarnContext(ctx, "Credit score update affected zero rows", "customer_id", customerID)
		return err
	}
	return nil
}

func (r *CreditRepository) InsertScoreAlertInTx(ctx context.Context, tx pgx.Tx, customerID int64, score int) error {
	if _, err := tx.Exec(ctx, insertScoreAlertSQL, customerID, score); err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert credit score alert", "customer_id", customerID, "score", score, "error", err)
		return translateDBError(err, "failed to insert credit score alert", r.logger)
	}
	return nil
}

func (r *CreditRepository) GetCreditScore(ctx context.Context, customerID int64) (*credit.CustomerScore, error) {
	var (
		id    int64
		score pgtype.Int4
	)
	startTime := time.Now()
	err := r.db.QueryRow(ctx, getCreditScoreSQL, customerID).Scan(&id, &score)
	r.record("GetCreditScore", err, startTime)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to get credit score", "customer_id", customerID, "error", err)
		return nil, translateDBError(err, fmt.Sprintf("customer %d", customerID), r.logger)
	}

	result := &credit.CustomerScore{CustomerID: id}
	if score.Valid {
		v := int(score.Int32)
		result.CreditScore = &v
	}
	return result, nil
}

func (r *CreditRepository) ListScoreAlerts(ctx context.Context, customerID int64, limit int) ([]credit.ScoreAlert, error) {
	startTime := time.Now()
	rows, err := r.db.Query(ctx, listScoreAlertsSQL, customerID, limit)
	if err != nil {
		r.record("ListScoreAlerts", err, startTime)
		r.logger.ErrorContext(ctx, "Failed to query score alerts", "customer_id", customerID, "error", err)
		return nil, translateDBError(err, "failed to query score alerts", r.logger)
	}
	defer rows.Close()

	alerts := make([]credit.ScoreAlert, 0)
	for rows.Next() {
		var alert credit.ScoreAlert
		if err := rows.Scan(&alert.CustomerID, &alert.CreditScore, &alert.CreatedAt); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan score alert row", "customer_id", customerID, "error", err)
			return nil, translateDBError(err, "failed to scan score alert", r.logger)
		}
		alerts = append(alerts, alert)
	}

	err = rows.Err()
	r.record("ListScoreAlerts", err, startTime)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error iterating score alert rows", "customer_id", customerID, "error", err)
		return nil, translateDBError(err, "failed to iterate score alerts", r.logger)
	}
	return alerts, nil
}

func (r *CreditRepository) ListCustomerIDs(ctx context.Context) ([]int64, error) {
	logCtx := r.logger.With(slog.String("operation", "ListCustomerIDs"))
	logCtx.DebugContext(ctx, "Attempting to list customer IDs")

	startTime := time.Now()
	rows, err := r.db.Query(ctx, listCustomerIDsSQL)
	if err != nil {
		r.record("ListCustomerIDs", err, startTime)
		logCtx.ErrorContext(ctx, "Failed to query customer IDs", slog.Any("error", err))
		return nil, translateDBError(err, "failed to query customer IDs", r.logger)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			r.record("ListCustomerIDs", err, startTime)
			logCtx.ErrorContext(ctx, "Failed to scan customer ID row", slog.Any("error", err))
			return nil, translateDBError(err, "failed scanning customer ID", r.logger)
		}
		ids = append(ids, id)
	}

	err = rows.Err()
	r.record("ListCustomerIDs", err, startTime)
	if err != nil {
		logCtx.ErrorContext(ctx, "Error iterating customer ID rows", slog.Any("error", err))
		return nil, translateDBError(err, "error iterating customer IDs", r.logger)
	}

	logCtx.DebugContext(ctx, "Finished listing customer IDs", slog.Int("count", len(ids)))
	return ids, nil
}

func (r *CreditRepository) record(queryName string, err error, startTime time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery(queryName, status, time.Since(startTime))
}
