package handler

import (
	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/account"
	"log/slog"
	"net/http"
	"time"
)

type AccountHandler struct {
	service account.TransferService
	logger  *slog.Logger
	now     func() time.Time
}

func NewAccountHandler(s account.TransferService, l *slog.Logger) *AccountHandler {
	if s == nil {
		panic("transfer service cannot be nil")
	}
	return &AccountHandler{
		service: s,
		logger:  l.With("component", "AccountHandler"),
		now:     time.Now,
	}
}

// Transfer handles POST /transfers
// @Summary Transfer balance between two accounts
// @Description Debits the sender and credits the receiver atomically. Sufficient funds are not checked. Send an Idempotency-Key header to make retries safe.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client generated key for safe retries"
// @Param request body dto.TransferRequest true "Transfer request"
// @Success 200 {object} dto.TransferResponse "Transfer committed"
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 409 {object} dto.ErrorResponse "Constraint violation or idempotency conflict"
// @Failure 503 {object} dto.ErrorResponse "Store unavailable"
// @Router /transfers [post]
// @Security BearerAuth
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode transfer request", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := dto.Validate(req); err != nil {
		respondError(w, err)
		return
	}
	cmd, err := req.ToCommand()
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.Transfer(r.Context(), cmd.SenderID, cmd.ReceiverID, cmd.Amount); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewTransferResponse(cmd, h.now()))
}

// GetAccount handles GET /accounts/{accountID}
// @Summary Get an account balance
// @Tags Accounts
// @Produce json
// @Param accountID path int true "Account ID"
// @Success 200 {object} dto.AccountResponse "Account"
// @Failure 400 {object} dto.ErrorResponse "Invalid account ID"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Router /accounts/{accountID} [get]
// @Security BearerAuth
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		respondError(w, err)
		return
	}

	acc, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewAccountResponse(acc))
}
