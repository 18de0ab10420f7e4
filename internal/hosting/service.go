// Package hosting orchestrates registrar calls for the checkout: domain
// availability, registrant creation and domain plus email hosting orders.
package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"github.com/smallbiznis/orderbridge/internal/registrar"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrDomainRequired    = errors.New("domain_required")
	ErrCustomerRequired  = errors.New("customer_required")
	ErrInvalidRegistrant = errors.New("invalid_registrant")
)

// Registrar is the subset of the registrar client used here.
type Registrar interface {
	RegisterCustomer(ctx context.Context, r registrar.Registrant) (registrar.Customer, error)
	RegisterDomain(ctx context.Context, domain, customerID, planID string) error
	CheckAvailability(ctx context.Context, name string) ([]json.RawMessage, error)
}

// Failure is a registrar-side rejection. Message is safe to return to the
// buyer.
type Failure struct {
	Operation string
	Err       error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type DomainOrder struct {
	Domain     string
	CustomerID string
	PlanID     string
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Registrar *registrar.Client
}

type Service struct {
	log       *zap.Logger
	registrar Registrar
}

func New(p Params) *Service {
	return NewService(p.Registrar, p.Log)
}

func NewService(r Registrar, log *zap.Logger) *Service {
	return &Service{registrar: r, log: log.Named("hosting.service")}
}

func (s *Service) CheckAvailability(ctx context.Context, domain string) ([]json.RawMessage, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, ErrDomainRequired
	}
	entries, err := s.registrar.CheckAvailability(ctx, domain)
	if err != nil {
		return nil, s.fail(ctx, "check_availability", err, zap.String("domain", domain))
	}
	return entries, nil
}

func (s *Service) RegisterCustomer(ctx context.Context, r registrar.Registrant) (registrar.Customer, error) {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Name) == "" {
		return registrar.Customer{}, ErrInvalidRegistrant
	}
	customer, err := s.registrar.RegisterCustomer(ctx, r)
	if err != nil {
		return registrar.Customer{}, s.fail(ctx, "register_customer", err, zap.String("email", r.Email))
	}
	logger.WithContext(ctx, s.log).Info("registrant created",
		zap.String("customer_id", customer.ID),
		zap.String("username", customer.Username),
	)
	return customer, nil
}

func (s *Service) RegisterDomain(ctx context.Context, order DomainOrder) error {
	if strings.TrimSpace(order.Domain) == "" {
		return ErrDomainRequired
	}
	if strings.TrimSpace(order.CustomerID) == "" {
		return ErrCustomerRequired
	}
	err := s.registrar.RegisterDomain(ctx, order.Domain, order.CustomerID, order.PlanID)
	if err != nil {
		return s.fail(ctx, "register_domain", err,
			zap.String("domain", order.Domain),
			zap.String("plan_id", order.PlanID),
		)
	}
	logger.WithContext(ctx, s.log).Info("domain registered",
		zap.String("domain", order.Domain),
		zap.Bool("email_hosting", strings.TrimSpace(order.PlanID) != ""),
	)
	return nil
}

func (s *Service) fail(ctx context.Context, op string, err error, fields ...zap.Field) error {
	if registrar.IsInvalidInput(err) {
		return ErrDomainRequired
	}
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	logger.WithContext(ctx, s.log).Warn("registrar call failed", fields...)
	return &Failure{Operation: op, Err: err}
}
