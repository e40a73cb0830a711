package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
)

// respondServiceError translates domain errors into HTTP responses.
// Verification rejections carry user-facing messages and map to 400;
// replay attempts map to 409 so clients can distinguish a retry of
// their own request from a genuine failure.
func respondServiceError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")

	switch {
	case errors.Is(err, domainerrors.ErrTransactionAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "TRANSACTION_ALREADY_USED", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrTransactionNotFound),
		errors.Is(err, domainerrors.ErrTransactionFailed),
		errors.Is(err, domainerrors.ErrRecipientMismatch),
		errors.Is(err, domainerrors.ErrNoTransferFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "VERIFICATION_FAILED", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrPriceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "PRICE_UNAVAILABLE", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "INSUFFICIENT_CREDITS", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "PROFILE_NOT_FOUND", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrCardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "CARD_NOT_FOUND", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrCardNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "CARD_NOT_ACTIVE", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrNoPreloadCards):
		c.JSON(http.StatusConflict, gin.H{"error": "NO_PRELOAD_CARDS", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "CONFLICT", "message": err.Error(), "request_id": requestID})
	case errors.Is(err, domainerrors.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "SERVICE_UNAVAILABLE", "message": err.Error(), "request_id": requestID})
	case isAmountTooLow(err), isUnsupportedNetwork(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "VERIFICATION_FAILED", "message": err.Error(), "request_id": requestID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "An internal error occurred", "request_id": requestID})
	}
}

func isAmountTooLow(err error) bool {
	return strings.HasPrefix(err.Error(), "Amount too low")
}

func isUnsupportedNetwork(err error) bool {
	return strings.HasPrefix(err.Error(), "Unsupported network")
}
