package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinScore           = 300
	MaxScore           = 850
	AlertThreshold     = 500
	LoanWeight         = 400
	UtilizationWeight  = 300
	UtilizationLimit   = 10000
	LatePaymentPenalty = 50
	componentPrecision = 2

	DefaultAlertsLimit = 20
	MaxAlertsLimit     = 100
)

var (
	minScore          = decimal.NewFromInt(MinScore)
	maxScore          = decimal.NewFromInt(MaxScore)
	loanWeight        = decimal.NewFromInt(LoanWeight)
	utilizationWeight = decimal.NewFromInt(UtilizationWeight)
	utilizationLimit  = decimal.NewFromInt(UtilizationLimit)
	latePenalty       = decimal.NewFromInt(LatePaymentPenalty)
)

type LoanSummary struct {
	TotalLoanAmount    decimal.Decimal
	TotalRepayment     decimal.Decimal
	OutstandingBalance decimal.Decimal
}

// Factors are the aggregated inputs of one score computation.
type Factors struct {
	Loans             LoanSummary
	CreditCardBalance decimal.Decimal
	LatePayments      int64
}

type Breakdown struct {
	Factors              Factors
	LoanComponent        decimal.Decimal
	UtilizationComponent decimal.Decimal
	LatePenalty          decimal.Decimal
	RawScore             decimal.Decimal
	Score                int
}

type ScoreResult struct {
	CustomerID   int64
	Score        int
	Breakdown    Breakdown
	AlertRaised  bool
	CalculatedAt time.Time
}

type CustomerScore struct {
	CustomerID  int64
	CreditScore *int
}

type ScoreAlert struct {
	CustomerID  int64
	CreditScore int
	CreatedAt   time.Time
}

// ComputeScore applies the scoring rules to already aggregated factors.
// Intermediate components are rounded half-to-even to two places; the
// final score is clamped to [MinScore, MaxScore].
func ComputeScore(f Factors) Breakdown {
	loanComponent := loanWeight
	if f.Loans.TotalLoanAmount.IsPositive() {
		loanComponent = f.Loans.TotalRepayment.
			Div(f.Loans.TotalLoanAmount).
			Mul(loanWeight).
			RoundBank(componentPrecision)
	}

	utilization := utilizationWeight
	if f.CreditCardBalance.IsPositive() {
		utilization = decimal.NewFromInt(1).
			Sub(f.CreditCardBalance.Div(utilizationLimit)).
			Mul(utilizationWeight).
			RoundBank(componentPrecision)
	}

	penalty := decimal.NewFromInt(f.LatePayments).Mul(latePenalty)
	raw := loanComponent.Add(utilization).Sub(penalty)

	return Breakdown{
		Factors:              f,
		LoanComponent:        loanComponent,
		UtilizationComponent: utilization,
		LatePenalty:          penalty,
		RawScore:             raw,
		Score:                clampScore(raw),
	}
}

func clampScore(raw decimal.Decimal) int {
	switch {
	case raw.LessThan(minScore):
		return MinScore
	case raw.GreaterThan(maxScore):
		return MaxScore
	default:
		return int(raw.RoundBank(0).IntPart())
	}
}

func RequiresAlert(score int) bool {
	return score < AlertThreshold
}

func normalizeAlertsLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAlertsLimit
	case limit > MaxAlertsLimit:
		return MaxAlertsLimit
	default:
		return limit
	}
}
