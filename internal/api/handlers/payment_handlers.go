package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	"github.com/dbank-service/dbank_service/internal/domain/services/ledger"
	"github.com/dbank-service/dbank_service/pkg/logger"
)

// PaymentHandlers handles deposit verification and credit balance endpoints
type PaymentHandlers struct {
	ledgerService *ledger.Service
	logger        *logger.Logger
}

// NewPaymentHandlers creates new payment handlers
func NewPaymentHandlers(ledgerService *ledger.Service, logger *logger.Logger) *PaymentHandlers {
	return &PaymentHandlers{ledgerService: ledgerService, logger: logger}
}

// VerifyPayment handles POST /api/v1/payments/verify
func (h *PaymentHandlers) VerifyPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req entities.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	resp, err := h.ledgerService.ReconcileDeposit(c.Request.Context(), userID, getUserEmail(c), req.TxHash, entities.Network(req.Network))
	if err != nil {
		h.logger.Warn("Deposit verification rejected",
			"user_id", userID.String(), "tx_hash", req.TxHash, "network", req.Network, "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetBalance handles GET /api/v1/credits/balance
func (h *PaymentHandlers) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	resp, err := h.ledgerService.GetBalance(c.Request.Context(), userID, getUserEmail(c), limit)
	if err != nil {
		h.logger.Error("Failed to get balance", "user_id", userID.String(), "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
