package handler

import (
	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/pkg/apperrors"
	"log/slog"
	"net/http"
	"strconv"
)

type CreditHandler struct {
	service credit.ScoreService
	logger  *slog.Logger
}

func NewCreditHandler(s credit.ScoreService, l *slog.Logger) *CreditHandler {
	if s == nil {
		panic("score service cannot be nil")
	}
	return &CreditHandler{
		service: s,
		logger:  l.With("component", "CreditHandler"),
	}
}

// CalculateScore handles POST /customers/{customerID}/credit-score
// @Summary Recalculate a customer's credit score
// @Description Aggregates loans, credit card balances and late payments, stores the new score and records an alert when it falls below 500.
// @Tags Credit
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} dto.ScoreResultResponse "Score recalculated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 503 {object} dto.ErrorResponse "Store unavailable"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/credit-score [post]
// @Security BearerAuth
func (h *CreditHandler) CalculateScore(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.service.CalculateAndUpdateScore(r.Context(), customerID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Credit score calculation failed", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewScoreResultResponse(result))
}

// GetScore handles GET /customers/{customerID}/credit-score
// @Summary Get a customer's stored credit score
// @Tags Credit
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} dto.CreditScoreResponse "Stored score, null when never scored"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Router /customers/{customerID}/credit-score [get]
// @Security BearerAuth
func (h *CreditHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	score, err := h.service.GetCreditScore(r.Context(), customerID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCreditScoreResponse(score))
}

// ListAlerts handles GET /customers/{customerID}/credit-score/alerts
// @Summary List low credit score alerts
// @Tags Credit
// @Produce json
// @Param customerID path int true "Customer ID"
// @Param limit query int false "Maximum number of alerts (default 20, max 100)"
// @Success 200 {array} dto.ScoreAlertResponse "Alerts, newest first"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID or limit"
// @Router /customers/{customerID}/credit-score/alerts [get]
// @Security BearerAuth
func (h *CreditHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, apperrors.NewInvalidArgumentError("limit must be a non-negative integer, got %q", raw))
			return
		}
	}

	alerts, err := h.service.ListScoreAlerts(r.Context(), customerID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewScoreAlertsResponse(alerts))
}
