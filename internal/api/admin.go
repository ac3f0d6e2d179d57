package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"payment-webhooks/internal/database"
	"payment-webhooks/internal/models"
	"payment-webhooks/internal/response"
	"payment-webhooks/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxListLimit = 500

// CreateOrderRequest represents create order request
type CreateOrderRequest struct {
	Amount      decimal.Decimal `json:"amount"` // major units
	Description string          `json:"description"`
}

// CreateOrder creates a new order payable through the providers
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		response.ErrorJSON(c, http.StatusBadRequest, "Amount must be positive")
		return
	}

	order := &models.Order{
		Amount:      req.Amount.Round(2),
		Description: req.Description,
	}
	if err := h.Orders.Create(c.Request.Context(), order); err != nil {
		logging.Errorf("Failed to create order: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to create order")
		return
	}

	response.JSON(c, http.StatusCreated, response.Success(order))
}

// GetOrder gets one order by id
func (h *Handlers) GetOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := h.Orders.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			response.ErrorJSON(c, http.StatusNotFound, "Order not found")
			return
		}
		logging.Errorf("Failed to get order %d: %v", id, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to get order")
		return
	}

	response.SuccessJSON(c, order)
}

// ListTransactions lists transactions filtered by provider, account and a millisecond time range
func (h *Handlers) ListTransactions(c *gin.Context) {
	filter := database.TransactionFilter{
		Provider: models.Provider(c.Query("provider")),
		Account:  c.Query("account"),
		Limit:    100,
	}

	var err error
	if filter.From, err = queryMillis(c, "from"); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid from")
		return
	}
	if filter.To, err = queryMillis(c, "to"); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid to")
		return
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			response.ErrorJSON(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	transactions, err := h.Transactions.List(c.Request.Context(), filter)
	if err != nil {
		logging.Errorf("Failed to list transactions: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	response.SuccessJSON(c, transactions)
}

// GetTransaction gets one transaction by provider and provider transaction id
func (h *Handlers) GetTransaction(c *gin.Context) {
	provider := models.Provider(c.Param("provider"))
	id := c.Param("id")

	t, err := h.Transactions.FindByProviderID(c.Request.Context(), provider, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.ErrorJSON(c, http.StatusNotFound, "Transaction not found")
			return
		}
		logging.Errorf("Failed to get transaction %s/%s: %v", provider, id, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	response.SuccessJSON(c, t)
}

// queryMillis parses an optional unix-millisecond query parameter
func queryMillis(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, errors.New("invalid timestamp")
	}
	return time.UnixMilli(ms).UTC(), nil
}
