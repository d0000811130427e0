package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observe(t *testing.T) {
	m := New("govault")

	m.ObserveHTTP("POST", "/api/v1/2fa/verify", 200, 10*time.Millisecond)
	m.ObserveDecision("sensitive", "copy_password", "authorized", "")
	m.ObserveDecision("sensitive", "copy_password", "denied", "invalid_code")
	m.ObserveDecision("sensitive", "copy_password", "denied", "invalid_code")
	m.ObserveLedger("find_live", nil, time.Millisecond)
	m.ObserveLedger("create", errors.New("boom"), time.Millisecond)
	m.AddSwept(3)
	m.AddSwept(-1)

	if got := testutil.ToFloat64(m.decisions.WithLabelValues("sensitive", "copy_password", "denied", "invalid_code")); got != 2 {
		t.Fatalf("denied counter = %v", got)
	}
	if got := testutil.ToFloat64(m.sweptRows); got != 3 {
		t.Fatalf("swept counter = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "govault_stepup_decisions_total") {
		t.Fatal("exposition is missing the decisions counter")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, 0)
	m.ObserveDecision("", "", "", "")
	m.ObserveLedger("", nil, 0)
	m.AddSwept(1)
}
