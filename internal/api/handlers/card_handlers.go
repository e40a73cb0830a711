package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	"github.com/dbank-service/dbank_service/internal/domain/services/card"
	"github.com/dbank-service/dbank_service/pkg/logger"
)

// CardHandlers handles card lifecycle endpoints
type CardHandlers struct {
	cardService *card.Service
	logger      *logger.Logger
}

// NewCardHandlers creates new card handlers
func NewCardHandlers(cardService *card.Service, logger *logger.Logger) *CardHandlers {
	return &CardHandlers{cardService: cardService, logger: logger}
}

// CreateCard handles POST /api/v1/cards
func (h *CardHandlers) CreateCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req entities.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	resp, err := h.cardService.CreateCard(c.Request.Context(), userID, getUserEmail(c), req.Nickname)
	if err != nil {
		h.logger.Error("Card creation failed", "user_id", userID.String(), "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListCards handles GET /api/v1/cards
func (h *CardHandlers) ListCards(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cards, err := h.cardService.ListCards(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list cards", "user_id", userID.String(), "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

// GetCard handles GET /api/v1/cards/:id
func (h *CardHandlers) GetCard(c *gin.Context) {
	userID, cardID, ok := h.cardParams(c)
	if !ok {
		return
	}

	cardEntity, err := h.cardService.GetCard(c.Request.Context(), userID, cardID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cardEntity)
}

// FreezeCard handles POST /api/v1/cards/:id/freeze
func (h *CardHandlers) FreezeCard(c *gin.Context) {
	userID, cardID, ok := h.cardParams(c)
	if !ok {
		return
	}

	cardEntity, err := h.cardService.FreezeCard(c.Request.Context(), userID, cardID)
	if err != nil {
		h.logger.Error("Freeze failed", "user_id", userID.String(), "card_id", cardID.String(), "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cardEntity)
}

// UnfreezeCard handles POST /api/v1/cards/:id/unfreeze
func (h *CardHandlers) UnfreezeCard(c *gin.Context) {
	userID, cardID, ok := h.cardParams(c)
	if !ok {
		return
	}

	cardEntity, err := h.cardService.UnfreezeCard(c.Request.Context(), userID, cardID)
	if err != nil {
		h.logger.Error("Unfreeze failed", "user_id", userID.String(), "card_id", cardID.String(), "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cardEntity)
}

// TopUpCard handles POST /api/v1/cards/:id/topup
func (h *CardHandlers) TopUpCard(c *gin.Context) {
	userID, cardID, ok := h.cardParams(c)
	if !ok {
		return
	}

	var req entities.TopUpCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	resp, err := h.cardService.TopUpCard(c.Request.Context(), userID, cardID, req.AmountUSD)
	if err != nil {
		h.logger.Error("Card top-up failed", "user_id", userID.String(), "card_id", cardID.String(), "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyCardTopUp handles POST /api/v1/cards/topup/verify
func (h *CardHandlers) VerifyCardTopUp(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req entities.VerifyCardTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid card id"})
		return
	}

	resp, err := h.cardService.VerifyCardTopUp(c.Request.Context(), userID, cardID, req.TxHash,
		entities.Network(req.Network), entities.Asset(req.Currency))
	if err != nil {
		h.logger.Warn("Crypto card top-up rejected",
			"user_id", userID.String(), "card_id", req.CardID, "tx_hash", req.TxHash, "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListCardTransactions handles GET /api/v1/cards/:id/transactions
func (h *CardHandlers) ListCardTransactions(c *gin.Context) {
	userID, cardID, ok := h.cardParams(c)
	if !ok {
		return
	}

	transactions, err := h.cardService.ListCardTransactions(c.Request.Context(), userID, cardID)
	if err != nil {
		h.logger.Error("Failed to list card transactions",
			"user_id", userID.String(), "card_id", cardID.String(), "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// ListPreloadCards handles GET /api/v1/preload-cards
func (h *CardHandlers) ListPreloadCards(c *gin.Context) {
	cards, err := h.cardService.ListPreloadCards(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list preload cards", "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

// PurchasePreloadCard handles POST /api/v1/preload-cards/purchase
func (h *CardHandlers) PurchasePreloadCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req entities.PurchasePreloadCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	resp, err := h.cardService.PurchasePreloadCard(c.Request.Context(), userID, getUserEmail(c), req.TxHash)
	if err != nil {
		h.logger.Warn("Preload purchase rejected",
			"user_id", userID.String(), "tx_hash", req.TxHash, "error", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CardHandlers) cardParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}

	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid card id"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, cardID, true
}
