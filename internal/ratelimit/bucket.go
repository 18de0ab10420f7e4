package ratelimit

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are kept in thousandths so the script can return integers.
const checkoutBucketScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2]) * 1000

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "milli", "at")
local milli = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now
if now > at then
  milli = math.min(capacity, milli + (now - at) * rate)
end

local allowed = 0
local wait = 0
if milli >= 1000 then
  allowed = 1
  milli = milli - 1000
else
  wait = math.ceil((1000 - milli) / rate)
end

redis.call("HSET", KEYS[1], "milli", milli, "at", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, math.floor(milli / 1000), wait}
`

var checkoutBucket = redis.NewScript(checkoutBucketScript)

// Decision is the outcome of one checkout submission against the caller's
// bucket.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func clientKey(client string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	return keyCheckoutClient + client
}

// take spends one token from key. The bucket refills at l.rate tokens per
// second up to l.burst.
func (l *CheckoutLimiter) take(ctx context.Context, key string) (Decision, error) {
	ttl := bucketTTL(l.rate, l.burst)
	out, err := checkoutBucket.Run(ctx, l.client, []string{key}, l.rate, l.burst, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(out) != 3 {
		return Decision{}, errors.New("unexpected checkout bucket reply")
	}
	return Decision{
		Allowed:    out[0] == 1,
		Limit:      l.burst,
		Remaining:  int(out[1]),
		RetryAfter: time.Duration(out[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(2*float64(burst)/rate))
	return time.Duration(seconds) * time.Second
}
