package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/hosting"
	invoicedomain "github.com/smallbiznis/orderbridge/internal/invoice/domain"
	"github.com/smallbiznis/orderbridge/internal/observability"
	obsmiddleware "github.com/smallbiznis/orderbridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderbridge/internal/observability/metrics"
	obstracing "github.com/smallbiznis/orderbridge/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/orderbridge/internal/order/domain"
	paymentdomain "github.com/smallbiznis/orderbridge/internal/payment/domain"
	"github.com/smallbiznis/orderbridge/internal/ratelimit"
	"github.com/smallbiznis/orderbridge/internal/registrar"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	gin.SetMode(ginMode(cfg))
	return NewEngine(obsCfg, httpMetrics)
}

func ginMode(cfg config.Config) string {
	if cfg.IsProduction() {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			log.Info("checkout server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// hostingService is the registrar orchestration used by the hosting routes.
type hostingService interface {
	CheckAvailability(ctx context.Context, domain string) ([]json.RawMessage, error)
	RegisterCustomer(ctx context.Context, r registrar.Registrant) (registrar.Customer, error)
	RegisterDomain(ctx context.Context, order hosting.DomainOrder) error
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	catalog    *config.CatalogHolder
	orderSvc   orderdomain.Service
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	hostingSvc hostingService
	limiter    *ratelimit.CheckoutLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Catalog    *config.CatalogHolder
	OrderSvc   orderdomain.Service
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	HostingSvc *hosting.Service
	Limiter    *ratelimit.CheckoutLimiter
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		catalog:    p.Catalog,
		orderSvc:   p.OrderSvc,
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
		hostingSvc: p.HostingSvc,
		limiter:    p.Limiter,
	}

	svc.registerCheckoutRoutes()
	svc.registerHostingRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerCheckoutRoutes() {
	s.engine.GET("/", s.Landing)

	api := s.engine.Group("/api", s.CheckoutRateLimit())
	{
		api.POST("/create-client", s.CreateClient)
		api.POST("/create-invoice", s.CreateInvoice)
		api.POST("/process-payment", s.ProcessPayment)
	}
}

func (s *Server) registerHostingRoutes() {
	s.engine.GET("/domain-availability", s.DomainAvailability)
	s.engine.POST("/registrant", s.CheckoutRateLimit(), s.RegisterRegistrant)
	s.engine.POST("/register-domain", s.CheckoutRateLimit(), s.RegisterDomain)
}
