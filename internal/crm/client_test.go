package crm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rateLimitBody = `{"error":"Request rate per second exceeded"}`

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *recordingSleeper) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sleeper := &recordingSleeper{}
	opts = append([]Option{WithSleeper(sleeper.sleep)}, opts...)
	return NewClient(srv.URL, "test-key", opts...), sleeper
}

func TestSubmitRetriesRateLimitWithFixedDelay(t *testing.T) {
	var calls atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(rateLimitBody))
			return
		}
		_, _ = w.Write([]byte(`{"response":{"id":12}}`))
	})

	env, err := client.Submit(context.Background(), PathAccountCreate, url.Values{})
	require.NoError(t, err)
	assert.True(t, env.OK())
	assert.EqualValues(t, 4, calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, sleeper.recorded())
}

func TestSubmitNeverExceedsMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(rateLimitBody))
	})

	_, err := client.Submit(context.Background(), PathAccountCreate, url.Values{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxRetriesExceeded))
	assert.EqualValues(t, 5, calls.Load())
	assert.Len(t, sleeper.recorded(), 4)
}

func TestSubmitSucceedsOnFifthAttempt(t *testing.T) {
	var calls atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 5 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(rateLimitBody))
			return
		}
		_, _ = w.Write([]byte(`{"response":{"id":1}}`))
	})

	_, err := client.Submit(context.Background(), PathAccountCreate, url.Values{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, calls.Load())
	assert.Len(t, sleeper.recorded(), 4)
}

func TestSubmitFailsImmediatelyOnOtherErrors(t *testing.T) {
	var calls atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
	})

	_, err := client.Submit(context.Background(), PathAccountCreate, url.Values{})
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadRequest, upErr.StatusCode)
	assert.Equal(t, "Invalid API key", upErr.Message)
	assert.False(t, errors.Is(err, ErrMaxRetriesExceeded))
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, sleeper.recorded())
}

func TestSubmitTreatsThrottledOKReplyAsRateLimit(t *testing.T) {
	var calls atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(rateLimitBody))
			return
		}
		_, _ = w.Write([]byte(`{"response":{"id":3}}`))
	})

	_, err := client.Submit(context.Background(), PathAccountCreate, url.Values{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.Len(t, sleeper.recorded(), 1)
}

func TestSubmitReturnsEnvelopeWithoutResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"email is required"}`))
	})

	env, err := client.Submit(context.Background(), PathAccountCreate, url.Values{})
	require.NoError(t, err)
	assert.False(t, env.OK())
	assert.Equal(t, "email is required", env.ErrorMessage())
}

func TestSubmitSendsFormEncodedBodyAndAPIKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/"+PathAccountCreate, r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Jane", r.PostForm.Get("first_name"))
		_, _ = w.Write([]byte(`{"response":{"id":1}}`))
	})

	fields := url.Values{}
	fields.Set("first_name", "Jane")
	_, err := client.Submit(context.Background(), PathAccountCreate, fields)
	require.NoError(t, err)
}

func TestSubmitStopsWaitingWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(rateLimitBody))
	}))
	t.Cleanup(srv.Close)

	policy := DefaultRetryPolicy()
	policy.InitialInterval = time.Hour
	policy.MaxInterval = time.Hour
	client := NewClient(srv.URL, "k", WithRetryPolicy(policy))

	_, err := client.Submit(ctx, PathAccountCreate, url.Values{})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestExponentialPolicyGrowsUpToMax(t *testing.T) {
	var calls atomic.Int32
	policy := RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     300 * time.Millisecond,
	}
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(rateLimitBody))
	}, WithRetryPolicy(policy))

	_, err := client.Submit(context.Background(), PathAccountCreate, url.Values{})
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}, sleeper.recorded())
}
