package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stayscan/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveScanCell("ok")
	observability.ObserveTransition("NEW_DATE_RECORDED")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	if !strings.Contains(out, "stayscan_http_requests_total") {
		t.Fatalf("expected stayscan_http_requests_total in output")
	}
	if !strings.Contains(out, "stayscan_scan_cells_total") {
		t.Fatalf("expected stayscan_scan_cells_total in output")
	}
	if !strings.Contains(out, "stayscan_reconcile_transitions_total") {
		t.Fatalf("expected stayscan_reconcile_transitions_total in output")
	}
}
