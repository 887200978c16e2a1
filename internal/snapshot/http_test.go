package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

const indexDoc = `{
  "id": "central-1",
  "name": "Main",
  "ports": {"inputs": [{"port": 0, "label": "A", "keysLimit": 4}]},
  "indexGlobalKeys": {"inputs": {"A": {"keysLimit": 4, "keys": ["dev-1", null, null, null], "sequence": ["dev-1"]}}}
}`

const menuDoc = `[{
  "id": "central-1",
  "name": "Main",
  "inputPorts": [{"port": 0, "label": "A", "keysLimit": 4, "devices": [{"id": "kp-1", "kind": "keypad_2"}]}],
  "outputPorts": []
}]`

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/centrals/central-1/hardware", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer backend-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(indexDoc)) //nolint:errcheck // test server
	})
	mux.HandleFunc("GET /api/centrals/central-1/menu", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(menuDoc)) //nolint:errcheck // test server
	})
	mux.HandleFunc("GET /api/centrals/other/hardware", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(indexDoc)) //nolint:errcheck // test server
	})
	mux.HandleFunc("GET /api/centrals/garbled/hardware", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>`)) //nolint:errcheck // test server
	})
	mux.HandleFunc("GET /api/centrals/broken/hardware", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("GET /api/centrals/slow/hardware", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHTTPProvider(t *testing.T, base string, shape Shape) *HTTPProvider {
	t.Helper()
	p, err := NewHTTPProvider(HTTPOptions{
		BaseURL: base + "/api/",
		Shape:   shape,
		Token:   "backend-token",
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHTTPProvider() error = %v", err)
	}
	return p
}

func TestHTTPProviderIndex(t *testing.T) {
	srv := newBackend(t)
	p := newTestHTTPProvider(t, srv.URL, ShapeIndex)

	snap, err := p.Snapshot(context.Background(), "central-1", hardware.DirectionInput)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Ports) != 1 {
		t.Fatalf("ports = %d, want 1", len(snap.Ports))
	}
	port := snap.Ports[0]
	if port.Malformed || port.KeysOccupied() != 1 || port.Slots[0] == nil || port.Slots[0].ID != "dev-1" {
		t.Errorf("port = %+v", port)
	}
}

func TestHTTPProviderMenu(t *testing.T) {
	srv := newBackend(t)
	p := newTestHTTPProvider(t, srv.URL, ShapeMenu)

	snap, err := p.Snapshot(context.Background(), "central-1", hardware.DirectionInput)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	port := snap.Ports[0]
	if port.Slots[0] == nil || port.Slots[0].ID != "kp-1" || port.KeysOccupied() != 2 {
		t.Errorf("port = %+v", port)
	}

	out, err := p.Snapshot(context.Background(), "central-1", hardware.DirectionOutput)
	if err != nil || len(out.Ports) != 0 {
		t.Errorf("output snapshot = %+v, %v; want empty", out, err)
	}
}

func TestHTTPProviderErrors(t *testing.T) {
	srv := newBackend(t)
	p := newTestHTTPProvider(t, srv.URL, ShapeIndex)
	ctx := context.Background()

	tests := []struct {
		name    string
		central string
		dir     hardware.Direction
		want    error
	}{
		{"unknown central", "central-9", hardware.DirectionInput, hardware.ErrNotFound},
		{"backend failure", "broken", hardware.DirectionInput, hardware.ErrTransportFailure},
		{"timeout", "slow", hardware.DirectionInput, hardware.ErrTransportFailure},
		{"wrong central returned", "other", hardware.DirectionInput, hardware.ErrMalformedSnapshot},
		{"not json", "garbled", hardware.DirectionInput, hardware.ErrMalformedSnapshot},
		{"bad direction", "central-1", "up", hardware.ErrInvalidDirection},
		{"empty central", "", hardware.DirectionInput, hardware.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Snapshot(ctx, tt.central, tt.dir); !errors.Is(err, tt.want) {
				t.Errorf("Snapshot() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHTTPProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	p := newTestHTTPProvider(t, base, ShapeIndex)
	if _, err := p.Snapshot(context.Background(), "central-1", hardware.DirectionInput); !errors.Is(err, hardware.ErrTransportFailure) {
		t.Errorf("Snapshot() error = %v, want ErrTransportFailure", err)
	}
}

func TestHTTPProviderMenuMissingCentral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(menuDoc)) //nolint:errcheck // test server
	}))
	t.Cleanup(srv.Close)

	p := newTestHTTPProvider(t, srv.URL, ShapeMenu)
	if _, err := p.Snapshot(context.Background(), "central-2", hardware.DirectionInput); !errors.Is(err, hardware.ErrNotFound) {
		t.Errorf("Snapshot() error = %v, want ErrNotFound", err)
	}
}

func TestNewHTTPProvider(t *testing.T) {
	tests := []struct {
		name    string
		opts    HTTPOptions
		wantErr bool
	}{
		{"defaults to index", HTTPOptions{BaseURL: "http://backend:3000/api"}, false},
		{"menu", HTTPOptions{BaseURL: "https://backend/api", Shape: ShapeMenu}, false},
		{"relative url", HTTPOptions{BaseURL: "/api"}, true},
		{"empty url", HTTPOptions{}, true},
		{"unknown shape", HTTPOptions{BaseURL: "http://backend", Shape: "tree"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewHTTPProvider(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewHTTPProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.shape == "" {
				t.Error("shape not defaulted")
			}
		})
	}
}
