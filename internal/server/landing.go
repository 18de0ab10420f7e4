package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/smallbiznis/orderbridge/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var landingTemplate = template.Must(template.ParseFS(templateFS, "templates/checkout.html"))

type landingPage struct {
	StripePublicKey string
	Packages        []config.PricePackage
}

// Landing serves the checkout page with the publishable Stripe key.
func (s *Server) Landing(c *gin.Context) {
	page := landingPage{StripePublicKey: s.cfg.Stripe.PublicKey}
	if s.catalog != nil {
		page.Packages = s.catalog.Get().Packages
	}
	c.Render(http.StatusOK, render.HTML{
		Template: landingTemplate,
		Name:     "checkout.html",
		Data:     page,
	})
}
