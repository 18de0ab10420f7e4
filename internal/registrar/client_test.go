package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Path    string
	Query   string
	Headers http.Header
	Body    map[string]any
}

type fakeRegistrar struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string]string
}

func (f *fakeRegistrar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := recordedCall{Path: r.URL.Path, Query: r.URL.RawQuery, Headers: r.Header.Clone()}
	if r.Body != nil && r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	reply, ok := f.replies[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"error_message":"not found"}`))
		return
	}
	_, _ = w.Write([]byte(reply))
}

func (f *fakeRegistrar) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Path)
	}
	return out
}

func newTestClient(t *testing.T, replies map[string]string) (*Client, *fakeRegistrar) {
	t.Helper()
	fake := &fakeRegistrar{replies: replies}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret", "reseller-9"), fake
}

func TestRegisterDomainWithEmailHosting(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/domains/register": `{"status":true,"data":{"id":10,"status":1}}`,
		"/email/register":   `{"status":true,"data":{"id":11,"status":"2"}}`,
	})

	err := client.RegisterDomain(context.Background(), "Example.co.uk", "cust-1", "plan-3")
	require.NoError(t, err)
	assert.Equal(t, Result{Status: true, Error: ""}, ResultOf(err))
	assert.Equal(t, []string{"/domains/register", "/email/register"}, fake.paths())

	email := fake.calls[1].Body
	assert.Equal(t, "example.co.uk", email["domain"])
	assert.Equal(t, "plan-3", email["plan_id"])
	assert.Equal(t, "cust-1", email["customer_id"])
}

func TestRegisterDomainEmailStatusNotAccepted(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/domains/register": `{"status":true,"data":{"status":2}}`,
		"/email/register":   `{"status":true,"data":{"status":5}}`,
	})

	err := client.RegisterDomain(context.Background(), "example.com", "cust-1", "plan-3")
	require.Error(t, err)

	var emailErr *EmailHostingError
	require.ErrorAs(t, err, &emailErr)
	res := ResultOf(err)
	assert.False(t, res.Status)
	assert.Contains(t, res.Error, "Domain example.com registered")
	assert.Contains(t, res.Error, "email hosting failed")
	assert.Contains(t, res.Error, "status 5")
}

func TestRegisterDomainEmailCallRejected(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/domains/register": `{"status":true,"data":{"status":1}}`,
		"/email/register":   `{"status":false,"error_message":"plan not found"}`,
	})

	err := client.RegisterDomain(context.Background(), "example.com", "cust-1", "plan-x")
	res := ResultOf(err)
	assert.False(t, res.Status)
	assert.Equal(t, "Domain example.com registered but email hosting failed: plan not found", res.Error)
}

func TestRegisterDomainFailureSkipsEmail(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/domains/register": `{"status":false,"validation_errors":{"domain":["is taken"]}}`,
		"/email/register":   `{"status":true,"data":{"status":1}}`,
	})

	err := client.RegisterDomain(context.Background(), "example.com", "cust-1", "plan-3")
	require.ErrorIs(t, err, ErrRegistrarFailed)
	assert.Equal(t, Result{Status: false, Error: "domain: is taken"}, ResultOf(err))
	assert.Equal(t, []string{"/domains/register"}, fake.paths())
}

func TestRegisterDomainUnacceptedStatusSkipsEmail(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/domains/register": `{"status":true,"data":{"status":{"code":4}}}`,
	})

	err := client.RegisterDomain(context.Background(), "example.com", "cust-1", "plan-3")
	assert.Equal(t, "domain registration returned status 4", ResultOf(err).Error)
	assert.Len(t, fake.paths(), 1)
}

func TestRegisterDomainWithoutPlanSucceeds(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/domains/register": `{"status":true,"data":{"status":1}}`,
	})

	err := client.RegisterDomain(context.Background(), "example.com", "cust-1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/domains/register"}, fake.paths())
}

func TestEveryCallIsSignedWithFreshRequestID(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/domains/register": `{"status":true,"data":{"status":1}}`,
		"/email/register":   `{"status":true,"data":{"status":1}}`,
	})

	require.NoError(t, client.RegisterDomain(context.Background(), "example.com", "c", "p"))
	require.Len(t, fake.calls, 2)

	seen := map[string]bool{}
	for _, call := range fake.calls {
		reqID := call.Headers.Get("Request-Id")
		assert.Len(t, reqID, 32)
		assert.Equal(t, Sign(reqID, "secret"), call.Headers.Get("Signature"))
		assert.Equal(t, "reseller-9", call.Headers.Get("Reseller-ID"))
		assert.False(t, seen[reqID])
		seen[reqID] = true
	}
}

func TestSignIsMD5OfRequestIDAndKey(t *testing.T) {
	// md5("abc")
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", Sign("ab", "c"))
}

func TestRegisterCustomer(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/customers": `{"status":true,"data":{"customer_id":"77","username":"jane"}}`,
	})

	customer, err := client.RegisterCustomer(context.Background(), Registrant{Name: "Jane", Email: "jane@example.com", Username: "jane"})
	require.NoError(t, err)
	assert.Equal(t, Customer{ID: "77", Username: "jane"}, customer)
	assert.Equal(t, "jane@example.com", fake.calls[0].Body["email"])
}

func TestCheckAvailabilityQueriesEverySuffix(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/domains/availability": `{"status":true,"data":[{"domain":"my-shop.com","available":true},{"domain":"my-shop.uk","available":false}]}`,
	})

	entries, err := client.CheckAvailability(context.Background(), "My Shop.co.uk")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.JSONEq(t, `{"domain":"my-shop.com","available":true}`, string(entries[0]))

	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0].Query, "domain_names=")
	for _, suffix := range Suffixes {
		assert.Contains(t, strings.ReplaceAll(fake.calls[0].Query, "%2C", ","), "my-shop."+suffix)
	}
}

func TestCheckAvailabilityUnexpectedShapeIsEmpty(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/domains/availability": `{"status":true,"data":{"unexpected":true}}`,
	})

	entries, err := client.CheckAvailability(context.Background(), "example")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestCheckAvailabilityRequiresName(t *testing.T) {
	client, fake := newTestClient(t, nil)

	_, err := client.CheckAvailability(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Empty(t, fake.paths())
}

func TestTransportFailureIsRegistrarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "k", "r")
	err := client.RegisterDomain(context.Background(), "example.com", "c", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegistrarFailed))
}
