package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var slept []time.Duration
	c := New(srv.URL, WithRetry(3, time.Second))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestLoadDefaultsMissingFields(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer header: %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"habits":null}`))
	})

	snap, err := c.Load(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.Habits == nil || snap.DailyData == nil || snap.CurrentStreak != 0 {
		t.Errorf("snapshot not defaulted: %+v", snap)
	}
}

func TestSaveSendsSnapshot(t *testing.T) {
	var got models.Snapshot
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/save-data" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Write([]byte(`{"success":true}`))
	})

	snap := models.NewSnapshot()
	snap.Habits = append(snap.Habits, models.Habit{ID: "h1", Name: "Read", Category: models.CategoryStudy})
	snap.CurrentStreak = 3
	if err := c.Save(context.Background(), "tok", snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(got.Habits) != 1 || got.CurrentStreak != 3 {
		t.Errorf("server received %+v", got)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	var calls atomic.Int32
	c, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success":true}`))
	})

	if err := c.Save(context.Background(), "tok", models.NewSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("backoff = %v, want %v", *slept, want)
	}
}

func TestRetryExhaustedIsTransient(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Load(context.Background(), "tok")
	if !errors.Is(err, apperrors.ErrTransient) {
		t.Fatalf("Load error = %v, want ErrTransient", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestUnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Load(context.Background(), "expired")
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("Load error = %v, want ErrUnauthorized", err)
	}
	if calls.Load() != 1 || len(*slept) != 0 {
		t.Errorf("unauthorized was retried: calls %d, sleeps %v", calls.Load(), *slept)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})

	err := c.Save(context.Background(), "tok", models.NewSnapshot())
	if apperrors.Classify(err) != apperrors.KindValidation {
		t.Fatalf("Save error = %v, want validation", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestOversizedResponseRejected(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"habits":[],"dailyData":{},"currentStreak":0,"pad":"`))
		w.Write(bytes.Repeat([]byte("x"), constants.ServerMaxBodyBytes))
		w.Write([]byte(`"}`))
	})

	_, err := c.Load(context.Background(), "tok")
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("Load error = %v, want ErrResponseTooLarge", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithRetry(2, 0))
	err := c.Save(context.Background(), "tok", models.NewSnapshot())
	if !errors.Is(err, apperrors.ErrTransient) {
		t.Fatalf("Save error = %v, want ErrTransient", err)
	}
}

func TestCanceledContextStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Load(ctx, "tok")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Load error = %v, want context.Canceled", err)
	}
}
