package allocator

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read scrape: %v", err)
	}
	return string(body)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("NewPrometheusRecorder() error = %v", err)
	}

	r.ObserveFetch(hardware.DirectionInput, 20*time.Millisecond, nil)
	r.ObserveFetch(hardware.DirectionInput, time.Millisecond, fmt.Errorf("wrap: %w", hardware.ErrNotFound))
	r.ObserveFetch(hardware.DirectionOutput, time.Millisecond, errors.New("dial tcp: refused"))
	r.ObserveScan(hardware.DirectionInput, []PortAvailability{
		{Port: 0, Available: true},
		{Port: 1},
		{Port: 2, Malformed: true},
		{Port: 3, Available: true},
	})
	r.ObserveLocate(hardware.DirectionOutput, true)
	r.ObserveCache(true)
	r.ObserveCache(false)
	r.ObserveCache(false)
	r.ObserveCommit("")

	out := scrape(t, reg)
	want := []string{
		`graylogic_installer_snapshot_fetches_total{direction="input",result="ok"} 1`,
		`graylogic_installer_snapshot_fetches_total{direction="input",result="not_found"} 1`,
		`graylogic_installer_snapshot_fetches_total{direction="output",result="transport_failure"} 1`,
		`graylogic_installer_snapshot_fetch_duration_seconds_count{direction="input"} 2`,
		`graylogic_installer_scanned_ports_total{direction="input",state="available"} 2`,
		`graylogic_installer_scanned_ports_total{direction="input",state="full"} 1`,
		`graylogic_installer_scanned_ports_total{direction="input",state="malformed"} 1`,
		`graylogic_installer_locates_total{direction="output",found="true"} 1`,
		`graylogic_installer_snapshot_cache_lookups_total{result="hit"} 1`,
		`graylogic_installer_snapshot_cache_lookups_total{result="miss"} 2`,
		`graylogic_installer_placement_commits_total{direction="all"} 1`,
	}
	for _, line := range want {
		if !strings.Contains(out, line) {
			t.Errorf("scrape missing %q", line)
		}
	}
}

func TestPrometheusRecorder_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusRecorder(reg); err != nil {
		t.Fatalf("first NewPrometheusRecorder() error = %v", err)
	}
	if _, err := NewPrometheusRecorder(reg); err == nil {
		t.Error("second registration on the same registry succeeded")
	}
}

func TestServiceRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("NewPrometheusRecorder() error = %v", err)
	}

	provider := newStubProvider()
	provider.put(snapshot(hardware.DirectionInput, port(0, 8, 0)))
	svc, err := NewService(Options{Provider: provider, Cache: NewMemoryCache(time.Minute), Recorder: rec})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	for range 2 {
		if _, err := svc.Scan(t.Context(), "central-1", hardware.DirectionInput); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
	}

	out := scrape(t, reg)
	for _, line := range []string{
		`graylogic_installer_snapshot_fetches_total{direction="input",result="ok"} 1`,
		`graylogic_installer_snapshot_cache_lookups_total{result="hit"} 1`,
		`graylogic_installer_scanned_ports_total{direction="input",state="available"} 2`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("scrape missing %q", line)
		}
	}
}
