package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderbridge/internal/hosting"
	"github.com/smallbiznis/orderbridge/internal/registrar"
)

const msgAvailabilityFailed = "Failed to check domain availability."

type registerDomainRequest struct {
	Domain     string `json:"domain" form:"domain"`
	CustomerID string `json:"customer_id" form:"customer_id"`
	PlanID     string `json:"plan_id" form:"plan_id"`
}

func (s *Server) DomainAvailability(c *gin.Context) {
	entries, err := s.hostingSvc.CheckAvailability(c.Request.Context(), strings.TrimSpace(c.Query("domain")))
	if err != nil {
		if !isValidationError(err) {
			err = withPublicMessage(http.StatusInternalServerError, msgAvailabilityFailed, err)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) RegisterRegistrant(c *gin.Context) {
	var req registrar.Registrant
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	customer, err := s.hostingSvc.RegisterCustomer(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   true,
		"customer": customer.ID,
		"username": customer.Username,
	})
}

// RegisterDomain registers the domain and, when a plan id is given, its
// email hosting package.
func (s *Server) RegisterDomain(c *gin.Context) {
	var req registerDomainRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err := s.hostingSvc.RegisterDomain(c.Request.Context(), hosting.DomainOrder{
		Domain:     strings.TrimSpace(req.Domain),
		CustomerID: strings.TrimSpace(req.CustomerID),
		PlanID:     strings.TrimSpace(req.PlanID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, registrar.ResultOf(nil))
}
