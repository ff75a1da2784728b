package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistryExposesImportCounters(t *testing.T) {
	reg := NewRegistry()
	reg.Created("client", 3)
	reg.Repaired("assignment_project")
	reg.RunFinished("completed", 2*time.Second)

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`order_import_entities_created_total{kind="client"} 3`,
		`order_import_repairs_total{kind="assignment_project"} 1`,
		`order_import_runs_total{outcome="completed"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var reg *Registry
	reg.Created("client", 1)
	reg.RowWarning()
	reg.BatchFailed("orders")
	reg.Repaired("worker")
	reg.RunFinished("failed", time.Second)
}
