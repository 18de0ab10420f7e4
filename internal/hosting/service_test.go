package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/smallbiznis/orderbridge/internal/registrar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRegistrar struct {
	customer     registrar.Customer
	customerErr  error
	domainErr    error
	availability []json.RawMessage
	availErr     error
	domainCalls  int
}

func (f *fakeRegistrar) RegisterCustomer(context.Context, registrar.Registrant) (registrar.Customer, error) {
	return f.customer, f.customerErr
}

func (f *fakeRegistrar) RegisterDomain(context.Context, string, string, string) error {
	f.domainCalls++
	return f.domainErr
}

func (f *fakeRegistrar) CheckAvailability(context.Context, string) ([]json.RawMessage, error) {
	return f.availability, f.availErr
}

func TestRegisterDomainWrapsRegistrarFailure(t *testing.T) {
	cause := &registrar.EmailHostingError{Domain: "example.com", Cause: errors.New("plan not found")}
	svc := NewService(&fakeRegistrar{domainErr: cause}, zap.NewNop())

	err := svc.RegisterDomain(context.Background(), DomainOrder{Domain: "example.com", CustomerID: "c1", PlanID: "p1"})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "register_domain", failure.Operation)
	assert.Equal(t, registrar.ResultOf(cause).Error, failure.Error())
}

func TestRegisterDomainRequiresInput(t *testing.T) {
	fake := &fakeRegistrar{}
	svc := NewService(fake, zap.NewNop())

	assert.ErrorIs(t, svc.RegisterDomain(context.Background(), DomainOrder{CustomerID: "c1"}), ErrDomainRequired)
	assert.ErrorIs(t, svc.RegisterDomain(context.Background(), DomainOrder{Domain: "example.com"}), ErrCustomerRequired)
	assert.Zero(t, fake.domainCalls)
}

func TestRegisterDomainSuccess(t *testing.T) {
	fake := &fakeRegistrar{}
	svc := NewService(fake, zap.NewNop())

	require.NoError(t, svc.RegisterDomain(context.Background(), DomainOrder{Domain: "example.com", CustomerID: "c1"}))
	assert.Equal(t, 1, fake.domainCalls)
}

func TestCheckAvailability(t *testing.T) {
	entries := []json.RawMessage{json.RawMessage(`{"domain":"a.com"}`)}
	svc := NewService(&fakeRegistrar{availability: entries}, zap.NewNop())

	got, err := svc.CheckAvailability(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	_, err = svc.CheckAvailability(context.Background(), "")
	assert.ErrorIs(t, err, ErrDomainRequired)
}

func TestCheckAvailabilityRegistrarErrorIsFailure(t *testing.T) {
	err := &registrar.Error{Operation: "check_availability", Message: "domain is required"}
	svc := NewService(&fakeRegistrar{availErr: err}, zap.NewNop())

	_, got := svc.CheckAvailability(context.Background(), "...")
	var failure *Failure
	assert.ErrorAs(t, got, &failure)
}

func TestRegisterCustomer(t *testing.T) {
	svc := NewService(&fakeRegistrar{customer: registrar.Customer{ID: "9", Username: "jane"}}, zap.NewNop())

	customer, err := svc.RegisterCustomer(context.Background(), registrar.Registrant{Name: "Jane", Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "9", customer.ID)

	_, err = svc.RegisterCustomer(context.Background(), registrar.Registrant{Name: "Jane"})
	assert.ErrorIs(t, err, ErrInvalidRegistrant)
}
