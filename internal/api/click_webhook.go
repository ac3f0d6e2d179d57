package api

import (
	"net/http"

	"payment-webhooks/internal/models"
	"payment-webhooks/internal/services"
	"payment-webhooks/pkg/logging"

	"github.com/gin-gonic/gin"
)

// ClickWebhook handles Click prepare and complete callbacks; the action comes from the form
func (h *Handlers) ClickWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody)
	var req models.ClickRequest
	if err := c.ShouldBind(&req); err != nil {
		logging.Warnf("Invalid Click request: %v", err)
		c.JSON(http.StatusOK, models.ClickResponse{
			ClickTransID:    req.ClickTransID,
			MerchantTransID: req.MerchantTransID,
			Error:           services.ClickCodeBadRequest,
			ErrorNote:       "Invalid request format",
		})
		return
	}

	resp := h.Click.Handle(c.Request.Context(), &req)
	c.JSON(http.StatusOK, resp)
}
