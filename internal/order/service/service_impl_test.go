package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/crm"
	"github.com/smallbiznis/orderbridge/internal/crm/crmtest"
	"github.com/smallbiznis/orderbridge/internal/order/domain"
	"github.com/smallbiznis/orderbridge/internal/order/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var orderDay = time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, fake *crmtest.Fake) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return service.New(service.Params{
		Log:     zap.NewNop(),
		GenID:   node,
		CRM:     fake,
		Catalog: config.NewStaticCatalogHolder(config.DefaultCatalog()),
		Clock:   clock.NewFakeClock(orderDay),
	})
}

func validRequest(total int64) domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		FirstName:  "Jane",
		LastName:   "Doe",
		Email:      "jane@example.com",
		Phone:      "+44 20 7946 0000",
		Billing:    domain.BillingAddress{Country: "GB", City: "London", Zip: "N1 9GU", Line1: "1 High St"},
		GrandTotal: decimal.NewFromInt(total),
	}
}

func TestCreateOrderDerivesDescriptionFromTotal(t *testing.T) {
	tests := []struct {
		total int64
		want  string
	}{
		{465, "Lite Hosting £15 / Website Development £450"},
		{519, "Business Hosting £69 / Website Development £450"},
		{500, ""},
	}
	for _, tt := range tests {
		fake := &crmtest.Fake{}
		_, err := newService(t, fake).Create(context.Background(), validRequest(tt.total))
		require.NoError(t, err)
		require.Len(t, fake.Projects, 1)
		require.Len(t, fake.Tasks, 1)
		assert.Equal(t, tt.want, fake.Projects[0].Description, "total %d", tt.total)
		assert.Equal(t, tt.want, fake.Tasks[0].Description, "total %d", tt.total)
	}
}

func TestCreateOrderLinksRecords(t *testing.T) {
	fake := &crmtest.Fake{
		AccountFunc: func(crm.Account) (int64, error) { return 101, nil },
		ProjectFunc: func(crm.Project) (int64, error) { return 202, nil },
		TaskFunc:    func(crm.Task) (int64, error) { return 303, nil },
	}

	res, err := newService(t, fake).Create(context.Background(), validRequest(465))
	require.NoError(t, err)

	assert.EqualValues(t, 101, res.ClientID)
	assert.EqualValues(t, 202, res.ProjectID)
	assert.EqualValues(t, 303, res.TaskID)
	assert.Equal(t, "Jane Doe", res.ClientName)
	assert.True(t, res.GrandTotal.Equal(decimal.NewFromInt(465)))
	assert.NotZero(t, res.OrderRef)

	account := fake.Accounts[0]
	assert.Equal(t, 2, account.Type)
	assert.Equal(t, "GB", account.Billing.Country)

	project := fake.Projects[0]
	assert.EqualValues(t, 101, project.ClientID)
	assert.Equal(t, "New Order", project.Name)
	assert.Equal(t, 3, project.TypeID)
	assert.Equal(t, 1, project.StageID)
	assert.Equal(t, 1, project.ManagerID)
	assert.True(t, project.EstimatedRevenue.Equal(decimal.NewFromInt(999)))
	assert.Equal(t, orderDay, project.StartDate)
	assert.Equal(t, orderDay, project.EndDate)

	task := fake.Tasks[0]
	assert.EqualValues(t, 101, task.ClientID)
	assert.EqualValues(t, 202, task.ProjectID)
}

func TestCreateOrderStopsWhenClientFails(t *testing.T) {
	fake := &crmtest.Fake{
		AccountFunc: func(crm.Account) (int64, error) {
			return 0, &crm.RejectedError{Resource: "client", Body: `{"error":"email taken"}`}
		},
	}

	_, err := newService(t, fake).Create(context.Background(), validRequest(465))
	require.Error(t, err)

	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.StepClient, stepErr.Step)
	assert.ErrorIs(t, err, crm.ErrRejected)
	assert.Empty(t, fake.Projects)
	assert.Empty(t, fake.Tasks)
}

func TestCreateOrderStopsWhenProjectFails(t *testing.T) {
	fake := &crmtest.Fake{
		ProjectFunc: func(crm.Project) (int64, error) { return 0, crm.ErrMaxRetriesExceeded },
	}

	_, err := newService(t, fake).Create(context.Background(), validRequest(519))

	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.StepProject, stepErr.Step)
	assert.True(t, errors.Is(err, crm.ErrMaxRetriesExceeded))
	assert.Len(t, fake.Accounts, 1)
	assert.Empty(t, fake.Tasks)
}

func TestCreateOrderReportsTaskFailure(t *testing.T) {
	fake := &crmtest.Fake{
		TaskFunc: func(crm.Task) (int64, error) { return 0, errors.New("boom") },
	}

	_, err := newService(t, fake).Create(context.Background(), validRequest(465))

	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.StepTask, stepErr.Step)
}

func TestCreateOrderRequiresName(t *testing.T) {
	fake := &crmtest.Fake{}
	req := validRequest(465)
	req.FirstName, req.LastName = " ", ""

	_, err := newService(t, fake).Create(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidName)
	assert.Empty(t, fake.Accounts)
}

func TestCreateOrderAcceptsAnyTotalAndEmail(t *testing.T) {
	for _, total := range []int64{0, -5} {
		fake := &crmtest.Fake{}
		req := validRequest(total)
		req.Email = "jane"

		_, err := newService(t, fake).Create(context.Background(), req)
		require.NoError(t, err, "total %d", total)
		require.Len(t, fake.Projects, 1)
		assert.Empty(t, fake.Projects[0].Description, "total %d", total)
		require.Len(t, fake.Tasks, 1)
	}

	fake := &crmtest.Fake{}
	req := validRequest(465)
	req.GrandTotal = decimal.Decimal{}
	_, err := newService(t, fake).Create(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, fake.Projects[0].Description)
}
