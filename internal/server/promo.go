package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func queryUserID(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.Query("userId"))
	if raw == "" {
		return 0, invalidRequest("userId is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidRequest("Invalid userId: %s", raw)
	}
	return id, nil
}

func (s *Server) ListPromos(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	promos, err := s.promoSvc.ListAvailable(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": promos})
}

func (s *Server) CheckPromo(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	view, err := s.promoSvc.Get(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

type applyPromoRequest struct {
	ReferenceID   string `json:"referenceId"`
	ReferenceType string `json:"referenceType"`
	PromoCode     string `json:"promoCode"`
}

func (s *Server) ApplyPromo(c *gin.Context) {
	var req applyPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequest("invalid request body"))
		return
	}
	if err := (referenceQuery{ReferenceID: req.ReferenceID, ReferenceType: req.ReferenceType}).validate(); err != nil {
		AbortWithError(c, err)
		return
	}
	if strings.TrimSpace(req.PromoCode) == "" {
		AbortWithError(c, invalidRequest("promoCode is required"))
		return
	}

	view, err := s.paymentSvc.ApplyPromo(c.Request.Context(), req.ReferenceID, req.ReferenceType, req.PromoCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}
