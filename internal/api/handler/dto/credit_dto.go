package dto

import (
	"credit-engine/internal/domain/credit"
	"time"
)

type ScoreBreakdownResponse struct {
	TotalLoanAmount      string `json:"totalLoanAmount"`
	TotalRepayment       string `json:"totalRepayment"`
	OutstandingBalance   string `json:"outstandingBalance"`
	CreditCardBalance    string `json:"creditCardBalance"`
	LatePayments         int64  `json:"latePayments"`
	LoanComponent        string `json:"loanComponent"`
	UtilizationComponent string `json:"utilizationComponent"`
	LatePenalty          string `json:"latePenalty"`
	RawScore             string `json:"rawScore"`
}

type ScoreResultResponse struct {
	CustomerID   int64                  `json:"customerId"`
	CreditScore  int                    `json:"creditScore"`
	AlertRaised  bool                   `json:"alertRaised"`
	CalculatedAt time.Time              `json:"calculatedAt"`
	Breakdown    ScoreBreakdownResponse `json:"breakdown"`
}

func NewScoreResultResponse(r *credit.ScoreResult) ScoreResultResponse {
	b := r.Breakdown
	return ScoreResultResponse{
		CustomerID:   r.CustomerID,
		CreditScore:  r.Score,
		AlertRaised:  r.AlertRaised,
		CalculatedAt: r.CalculatedAt.UTC(),
		Breakdown: ScoreBreakdownResponse{
			TotalLoanAmount:      b.Factors.Loans.TotalLoanAmount.StringFixed(2),
			TotalRepayment:       b.Factors.Loans.TotalRepayment.StringFixed(2),
			OutstandingBalance:   b.Factors.Loans.OutstandingBalance.StringFixed(2),
			CreditCardBalance:    b.Factors.CreditCardBalance.StringFixed(2),
			LatePayments:         b.Factors.LatePayments,
			LoanComponent:        b.LoanComponent.StringFixed(2),
			UtilizationComponent: b.UtilizationComponent.StringFixed(2),
			LatePenalty:          b.LatePenalty.StringFixed(2),
			RawScore:             b.RawScore.StringFixed(2),
		},
	}
}

// CreditScoreResponse carries a nil score for customers never scored.
type CreditScoreResponse struct {
	CustomerID  int64 `json:"customerId"`
	CreditScore *int  `json:"creditScore"`
}

func NewCreditScoreResponse(s *credit.CustomerScore) CreditScoreResponse {
	return CreditScoreResponse{CustomerID: s.CustomerID, CreditScore: s.CreditScore}
}

type ScoreAlertResponse struct {
	CustomerID  int64     `json:"customerId"`
	CreditScore int       `json:"creditScore"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewScoreAlertsResponse(alerts []credit.ScoreAlert) []ScoreAlertResponse {
	out := make([]ScoreAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, ScoreAlertResponse{CustomerID: a.CustomerID, CreditScore: a.CreditScore, CreatedAt: a.CreatedAt.UTC()})
	}
	return out
}
