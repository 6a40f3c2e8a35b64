package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ok(context.Context) (string, error) { return "fine", nil }
func failing(context.Context) (string, error) { return "", errors.New("unreachable") }

func TestRun(t *testing.T) {
	type reg struct {
		critical bool
		check    Check
	}
	tests := []struct {
		name   string
		checks map[string]reg
		want   Status
	}{
		{"no checks", nil, StatusUp},
		{"all up", map[string]reg{"index": {true, ok}, "redis": {false, ok}}, StatusUp},
		{"optional failing", map[string]reg{"index": {true, ok}, "redis": {false, failing}}, StatusDegraded},
		{"critical failing", map[string]reg{"index": {true, failing}, "redis": {false, failing}}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			for name, r := range tt.checks {
				c.Register(name, r.critical, r.check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("got %d components, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestRunReportsDetailAndError(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("index", true, ok)
	c.Register("redis", false, failing)
	report := c.Run(context.Background())

	if got := report.Components["index"]; got.Message != "fine" || !got.Critical {
		t.Errorf("index = %+v", got)
	}
	if got := report.Components["redis"]; got.Status != StatusDegraded || got.Message != "unreachable" {
		t.Errorf("redis = %+v", got)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	c.Register("slow", true, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if got := c.Run(context.Background()).Status; got != StatusDown {
		t.Errorf("Status = %s, want down after timeout", got)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("index", true, ok)
	c.Register("redis", false, failing)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded service status = %d, want 200", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", report.Status)
	}

	c.Register("postings", true, failing)
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status with a critical failure = %d, want 503", rec.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(time.Second).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
