package datamall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbus/internal/logging"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	waits []time.Duration
	ch    chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{ch: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.ch <- time.Now()
}

func (t *recordingTimer) Stop()               {}
func (t *recordingTimer) C() <-chan time.Time { return t.ch }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingTimer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "test-key", logging.Discard())
	timer := newRecordingTimer()
	c.timer = timer
	return c, timer
}

func TestGet_SendsHeadersAndQuery(t *testing.T) {
	var gotKey, gotAccept, gotSkip, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("AccountKey")
		gotAccept = r.Header.Get("Accept")
		gotSkip = r.URL.Query().Get(SkipParam)
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"value":[{"BusStopCode":"01012","RoadName":"Victoria St","Description":"Hotel Grand Pacific","Latitude":1.29684,"Longitude":103.85253}]}`))
	})

	env, err := Fetch[Envelope[BusStop]](context.Background(), c, BusStopsPath, url.Values{SkipParam: {"500"}})
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "500", gotSkip)
	assert.Equal(t, "/BusStops", gotPath)
	require.Len(t, env.Value, 1)
	assert.Equal(t, "01012", env.Value[0].BusStopCode)
	assert.Equal(t, "Victoria St", env.Value[0].RoadName)
	assert.InDelta(t, 103.85253, env.Value[0].Longitude, 1e-9)
}

func TestGet_MissingAPIKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", logging.Discard())
	var out Envelope[BusStop]
	err := c.Get(context.Background(), BusStopsPath, nil, &out)

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, calls.Load(), "no request should be sent without a key")
}

func TestGet_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	var out Envelope[BusStop]
	err := c.Get(context.Background(), BusStopsPath, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load(), "exactly 3 attempts")
	require.Len(t, timer.waits, 2)
	assert.Equal(t, 1*time.Second, timer.waits[0], "wait before 2nd attempt")
	assert.Equal(t, 2*time.Second, timer.waits[1], "wait before 3rd attempt")
}

func TestGet_RetryAfterFloor(t *testing.T) {
	var calls atomic.Int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	var out Envelope[BusStop]
	require.NoError(t, c.Get(context.Background(), BusStopsPath, nil, &out))

	require.Len(t, timer.waits, 1)
	assert.GreaterOrEqual(t, timer.waits[0], 10*time.Second)
}

func TestGet_RetryAfterSmallerThanBackoff(t *testing.T) {
	var calls atomic.Int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= 2 {
			w.Header().Set("Retry-After", "0.5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	var out Envelope[BusStop]
	require.NoError(t, c.Get(context.Background(), BusStopsPath, nil, &out))

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.waits)
}

func TestGet_HugeRetryAfterIsCapped(t *testing.T) {
	var calls atomic.Int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "10000000000")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	var out Envelope[BusStop]
	require.NoError(t, c.Get(context.Background(), BusStopsPath, nil, &out))

	assert.Equal(t, []time.Duration{time.Hour}, timer.waits)
}

func TestGet_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	var out Envelope[BusStop]
	err := c.Get(context.Background(), BusStopsPath, nil, &out)
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, timer.waits, 2)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindServer, re.Kind)
	assert.Equal(t, http.StatusBadGateway, re.StatusCode)
	assert.Equal(t, 3, re.Attempts)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestGet_ClientErrorIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			})

			var out Envelope[BusStop]
			err := c.Get(context.Background(), BusStopsPath, nil, &out)

			assert.True(t, IsKind(err, KindClient), "got %v", err)
			assert.Equal(t, int32(1), calls.Load())
			assert.Empty(t, timer.waits)
		})
	}
}

func TestGet_MalformedSuccessBodyIsFatal(t *testing.T) {
	var calls atomic.Int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	var out Envelope[BusStop]
	err := c.Get(context.Background(), BusStopsPath, nil, &out)

	assert.True(t, IsKind(err, KindParse), "got %v", err)
	assert.Equal(t, int32(1), calls.Load(), "parse errors are not retried")
	assert.Empty(t, timer.waits)
}

func TestGet_BodyWithoutValueIsFatal(t *testing.T) {
	bodies := map[string]string{
		"fault":      `{"fault":{"faultstring":"Rate limit quota violation","detail":{"errorcode":"policies.ratelimit.QuotaViolation"}}}`,
		"empty":      `{}`,
		"null value": `{"value":null}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte(body))
			})

			var out Envelope[BusStop]
			err := c.Get(context.Background(), BusStopsPath, nil, &out)

			assert.True(t, IsKind(err, KindParse), "got %v", err)
			assert.ErrorIs(t, err, ErrMissingValue)
			assert.Equal(t, int32(1), calls.Load())
			assert.Empty(t, timer.waits)
		})
	}
}

func TestGet_EmptyValueArrayIsValid(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"odata.metadata":"x","value":[]}`))
	})

	var out Envelope[BusStop]
	require.NoError(t, c.Get(context.Background(), BusStopsPath, nil, &out))
	assert.Empty(t, out.Value)
}

func TestGet_AttemptTimeoutIsRetryable(t *testing.T) {
	var calls atomic.Int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"value":[]}`))
	})
	c.attemptTimeout = 50 * time.Millisecond

	var out Envelope[BusStop]
	require.NoError(t, c.Get(context.Background(), BusStopsPath, nil, &out))

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, timer.waits)
}

func TestGet_TransportErrorExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	c := NewClient(srv.URL, "k", logging.Discard())
	timer := newRecordingTimer()
	c.timer = timer

	var out Envelope[BusStop]
	err := c.Get(context.Background(), BusStopsPath, nil, &out)

	assert.True(t, IsKind(err, KindTransport), "got %v", err)
	assert.Len(t, timer.waits, 2)
}

func TestGet_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out Envelope[BusStop]
	err := c.Get(ctx, BusStopsPath, nil, &out)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"10", 10 * time.Second},
		{"0", 0},
		{" 3 ", 3 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"-1", 0},
		{"", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"+10", 0},
		{"1e400", 0},
		{"3600", time.Hour},
		{"10000000000", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseRetryAfter(tt.in); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRemoteError_Retryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindTransport, true},
		{KindRateLimited, true},
		{KindServer, true},
		{KindClient, false},
		{KindParse, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			e := &RemoteError{Kind: tt.kind}
			if got := e.Retryable(); got != tt.want {
				t.Errorf("Retryable(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}
