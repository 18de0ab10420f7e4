package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/crm"
	invoicedomain "github.com/smallbiznis/orderbridge/internal/invoice/domain"
	"github.com/smallbiznis/orderbridge/internal/invoice/format"
	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/smallbiznis/orderbridge/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	CRM     crm.API
	Catalog *config.CatalogHolder
	Clock   clock.Clock
	Lock    *ratelimit.CheckoutLimiter
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	crm     crm.API
	catalog *config.CatalogHolder
	clock   clock.Clock
	lock    *ratelimit.CheckoutLimiter
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	lock := p.Lock
	if lock == nil {
		lock = ratelimit.NewLocalLimiter(0)
	}
	return &Service{
		log:     p.Log.Named("invoice.service"),
		crm:     p.CRM,
		catalog: p.Catalog,
		clock:   p.Clock,
		lock:    lock,
		metrics: p.Metrics,
	}
}

func (s *Service) NextNumber(ctx context.Context) (int64, error) {
	return s.nextNumber(ctx, s.catalog.Get().Invoice)
}

func (s *Service) nextNumber(ctx context.Context, defaults config.InvoiceDefaults) (int64, error) {
	parser, err := format.NewParser(defaults.PrintedTemplate, defaults.Prefix)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", invoicedomain.ErrNumberingUnavailable, err)
	}
	last, err := s.lastNumber(ctx, parser)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Create derives the next invoice number and creates the invoice. Both run
// under the numbering lock so concurrent checkouts never share a number.
func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceResult, error) {
	if req.ClientID <= 0 {
		return invoicedomain.InvoiceResult{}, invoicedomain.ErrInvalidClient
	}
	if req.ProjectID <= 0 {
		return invoicedomain.InvoiceResult{}, invoicedomain.ErrInvalidProject
	}
	if !req.GrandTotal.IsPositive() {
		return invoicedomain.InvoiceResult{}, invoicedomain.ErrInvalidGrandTotal
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.Int64("client_id", req.ClientID),
		zap.Int64("project_id", req.ProjectID),
	)

	release, err := s.lock.LockInvoiceNumbering(ctx)
	if err != nil {
		s.metrics.RecordInvoice(ctx, "lock_failed")
		return invoicedomain.InvoiceResult{}, fmt.Errorf("%w: %w", invoicedomain.ErrNumberingUnavailable, err)
	}
	defer release()

	snapshot := s.catalog.Get()
	catalog := snapshot.Invoice
	number, err := s.nextNumber(ctx, catalog)
	if err != nil {
		log.Error("derive invoice number failed", zap.Error(err))
		s.metrics.RecordInvoice(ctx, "numbering_failed")
		return invoicedomain.InvoiceResult{}, err
	}
	printed, err := format.FormatPrintedNumber(catalog.PrintedTemplate, catalog.Prefix, number)
	if err != nil {
		s.metrics.RecordInvoice(ctx, "numbering_failed")
		return invoicedomain.InvoiceResult{}, fmt.Errorf("%w: %w", invoicedomain.ErrNumberingUnavailable, err)
	}

	statusID := req.StatusID
	if statusID <= 0 {
		statusID = catalog.StatusID
	}
	today := s.clock.Now()

	invoiceID, err := s.crm.CreateInvoice(ctx, crm.Invoice{
		Number:         number,
		PrintedNumber:  printed,
		CustomerID:     req.ClientID,
		ProjectID:      req.ProjectID,
		StatusID:       statusID,
		InvoiceDate:    today,
		DueDate:        today,
		CurrencyID:     catalog.CurrencyID,
		TemplateID:     catalog.TemplateID,
		OrganizationID: catalog.OrganizationID,
		SubTotal:       req.GrandTotal,
		TaxFreeTotal:   req.GrandTotal,
		Total:          req.GrandTotal,
		Description:    snapshot.Describe(req.GrandTotal),
	})
	if err != nil {
		fields := []zap.Field{zap.String("printed_number", printed), zap.Error(err)}
		var rejected *crm.RejectedError
		if errors.As(err, &rejected) {
			fields = append(fields, zap.String("upstream_body", rejected.Body))
		}
		log.Error("create invoice failed", fields...)
		s.metrics.RecordInvoice(ctx, "failed")
		return invoicedomain.InvoiceResult{}, fmt.Errorf("%w: %w", invoicedomain.ErrCreateFailed, err)
	}

	s.metrics.RecordInvoice(ctx, "created")
	log.Info("invoice created",
		zap.Int64("invoice_id", invoiceID),
		zap.String("printed_number", printed),
	)

	return invoicedomain.InvoiceResult{
		InvoiceID:     invoiceID,
		Number:        number,
		PrintedNumber: printed,
		ClientName:    strings.TrimSpace(req.ClientName),
		Total:         req.GrandTotal,
	}, nil
}
