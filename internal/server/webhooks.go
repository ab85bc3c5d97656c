package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obstracing "github.com/smallbiznis/paylink/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// gatewayContextKey is read by the tracing middleware.
const gatewayContextKey = obstracing.GatewayKey

func readWebhookBody(c *gin.Context) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		return nil, invalidRequest("unreadable request body")
	}
	return payload, nil
}

// HandleTelrWebhook receives the form-encoded Telr transaction advice.
func (s *Server) HandleTelrWebhook(c *gin.Context) {
	c.Set(gatewayContextKey, paymentdomain.GatewayTelr.String())
	payload, err := readWebhookBody(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.webhookSvc.HandleTelr(c.Request.Context(), payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) HandleNoonWebhook(c *gin.Context) {
	c.Set(gatewayContextKey, paymentdomain.GatewayNoon.String())
	payload, err := readWebhookBody(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.webhookSvc.HandleNoon(c.Request.Context(), payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NoonRedirect sends the customer back from the Noon hosted page to the
// page matching the order's gateway status.
func (s *Server) NoonRedirect(c *gin.Context) {
	c.Set(gatewayContextKey, paymentdomain.GatewayNoon.String())
	orderID := strings.TrimSpace(c.Query("orderId"))
	if orderID == "" {
		AbortWithError(c, invalidRequest("orderId is required"))
		return
	}

	page, err := s.paymentSvc.NoonStatusPage(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusFound, page)
}
