package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	referraldomain "github.com/smallbiznis/paylink/internal/referral/domain"
)

type applyReferralRequest struct {
	ReferralCode string `json:"referralCode"`
}

func (s *Server) ApplyReferral(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req applyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequest("invalid request body"))
		return
	}

	view, err := s.referralSvc.Apply(c.Request.Context(), userID, req.ReferralCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) ListRewardsBalance(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.listRewards(c, userID)
}

// ListUserRewardsBalance is the back-office read of any user's balance.
func (s *Server) ListUserRewardsBalance(c *gin.Context) {
	raw := c.Param("userId")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		AbortWithError(c, invalidRequest("Invalid userId: %s", raw))
		return
	}
	s.listRewards(c, userID)
}

func (s *Server) listRewards(c *gin.Context, userID int64) {
	page, err := queryPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rewards, err := s.referralSvc.RewardsBalance(c.Request.Context(), userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rewards})
}

func queryPage(c *gin.Context) (referraldomain.Page, error) {
	var page referraldomain.Page
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, invalidRequest("Invalid page: %s", raw)
		}
		page.Number = n
	}
	if raw := strings.TrimSpace(c.Query("size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			return page, invalidRequest("Invalid size: %s", raw)
		}
		page.Size = n
	}
	return page.Normalize(), nil
}
