package api

import (
	"net/http"

	"payment-webhooks/pkg/logging"

	"github.com/gin-gonic/gin"
)

// maxCallbackBody caps provider callback bodies, read before authentication
const maxCallbackBody = 1 << 20

// PaymeWebhook handles Payme JSON-RPC callbacks. Errors travel inside the envelope, the status is always 200.
func (h *Handlers) PaymeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody)
	body, err := c.GetRawData()
	if err != nil {
		logging.Warnf("Failed to read Payme request body: %v", err)
		body = nil
	}

	resp := h.Payme.Handle(c.Request.Context(), c.GetHeader("Authorization"), body)
	c.JSON(http.StatusOK, resp)
}
