package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type referenceQuery struct {
	ReferenceID   string `form:"referenceId" json:"referenceId"`
	ReferenceType string `form:"referenceType" json:"referenceType"`
}

func (q referenceQuery) validate() error {
	if strings.TrimSpace(q.ReferenceID) == "" {
		return invalidRequest("referenceId is required")
	}
	if strings.TrimSpace(q.ReferenceType) == "" {
		return invalidRequest("referenceType is required")
	}
	return nil
}

func bindReferenceQuery(c *gin.Context) (referenceQuery, error) {
	var q referenceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return q, invalidRequest("invalid query")
	}
	return q, q.validate()
}

type hostedLinkResponse struct {
	URL string `json:"url"`
}

func (s *Server) CreateHostedPaymentLink(c *gin.Context) {
	var req referenceQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequest("invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		AbortWithError(c, err)
		return
	}

	url, err := s.paymentSvc.HostedPaymentLink(c.Request.Context(), req.ReferenceID, req.ReferenceType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": hostedLinkResponse{URL: url}})
}

func (s *Server) PayNow(c *gin.Context) {
	url, err := s.paymentSvc.PayNow(c.Request.Context(), strings.TrimSpace(c.Param("uuid")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

func (s *Server) GetPurchaseOrder(c *gin.Context) {
	q, err := bindReferenceQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.paymentSvc.GetOrder(c.Request.Context(), q.ReferenceID, q.ReferenceType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) GetPaymentTransaction(c *gin.Context) {
	q, err := bindReferenceQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.paymentSvc.LatestTransaction(c.Request.Context(), q.ReferenceID, q.ReferenceType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

// CancelPaymentTransaction cancels the latest transaction, or the repeat
// agreement for subscriptions.
func (s *Server) CancelPaymentTransaction(c *gin.Context) {
	q, err := bindReferenceQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.paymentSvc.DeleteOrder(c.Request.Context(), q.ReferenceID, q.ReferenceType); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
