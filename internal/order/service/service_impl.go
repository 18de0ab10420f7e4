package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/crm"
	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/smallbiznis/orderbridge/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	CRM     crm.API
	Catalog *config.CatalogHolder
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	crm     crm.API
	catalog *config.CatalogHolder
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("order.service"),
		genID:   p.GenID,
		crm:     p.CRM,
		catalog: p.Catalog,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// Create runs client, project and task creation in order and stops at the
// first failing step.
func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.OrderResult, error) {
	if err := validate(req); err != nil {
		s.metrics.RecordOrder(ctx, "invalid", string(domain.StepValidate))
		return domain.OrderResult{}, err
	}

	catalog := s.catalog.Get()
	ref := s.genID.Generate()
	today := s.clock.Now()
	description := catalog.Describe(req.GrandTotal)

	log := logger.WithContext(ctx, s.log).With(
		zap.String("order_ref", ref.String()),
		zap.String("grand_total", req.GrandTotal.String()),
	)

	clientID, err := s.crm.CreateAccount(ctx, crm.Account{
		Type:      catalog.Account.Type,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Billing: crm.Address{
			Country: req.Billing.Country,
			State:   req.Billing.State,
			City:    req.Billing.City,
			Zip:     req.Billing.Zip,
			Line1:   req.Billing.Line1,
			Line2:   req.Billing.Line2,
			Line3:   req.Billing.Line3,
		},
	})
	if err != nil {
		return domain.OrderResult{}, s.fail(ctx, log, domain.StepClient, err)
	}
	log = log.With(zap.Int64("client_id", clientID))

	projectID, err := s.crm.CreateProject(ctx, crm.Project{
		Name:              catalog.Project.Name,
		ClientID:          clientID,
		TypeID:            catalog.Project.TypeID,
		StageID:           catalog.Project.StageID,
		ManagerID:         catalog.Project.ManagerID,
		EstimatedRevenue:  decimal.NewFromFloat(catalog.Project.EstimatedRevenue),
		EstimatedExpenses: decimal.NewFromFloat(catalog.Project.EstimatedExpenses),
		StartDate:         today,
		EndDate:           today,
		Description:       description,
	})
	if err != nil {
		return domain.OrderResult{}, s.fail(ctx, log, domain.StepProject, err)
	}
	log = log.With(zap.Int64("project_id", projectID))

	taskID, err := s.crm.CreateTask(ctx, crm.Task{
		Name:        catalog.Task.Name,
		Description: description,
		StartDate:   today,
		EndDate:     today,
		ClientID:    clientID,
		ProjectID:   projectID,
	})
	if err != nil {
		return domain.OrderResult{}, s.fail(ctx, log, domain.StepTask, err)
	}

	s.metrics.RecordOrder(ctx, "created", "done")
	log.Info("order created", zap.Int64("task_id", taskID))

	return domain.OrderResult{
		OrderRef:   ref,
		ClientID:   clientID,
		ProjectID:  projectID,
		TaskID:     taskID,
		ClientName: clientName(req),
		GrandTotal: req.GrandTotal,
	}, nil
}

func (s *Service) fail(ctx context.Context, log *zap.Logger, step domain.Step, err error) error {
	fields := []zap.Field{zap.String("step", string(step)), zap.Error(err)}
	var rejected *crm.RejectedError
	if errors.As(err, &rejected) {
		fields = append(fields, zap.String("upstream_body", rejected.Body))
	}
	var upErr *crm.UpstreamError
	if errors.As(err, &upErr) {
		fields = append(fields, zap.Int("upstream_status", upErr.StatusCode), zap.String("upstream_body", upErr.Body))
	}
	log.Error("order step failed", fields...)
	s.metrics.RecordOrder(ctx, "failed", string(step))
	return &domain.StepError{Step: step, Err: err}
}

// validate only refuses orders the CRM would file under a blank name. Any
// total is accepted; totals outside the catalog carry an empty description.
func validate(req domain.CreateOrderRequest) error {
	if clientName(req) == "" {
		return domain.ErrInvalidName
	}
	return nil
}

func clientName(req domain.CreateOrderRequest) string {
	return strings.TrimSpace(strings.TrimSpace(req.FirstName) + " " + strings.TrimSpace(req.LastName))
}
