package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func newTestClient(w *fakeWriter, connected bool) *Client {
	return &Client{
		writer:    w,
		now:       func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
		connected: connected,
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(t.Context(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(t.Context(), config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:59999",
		Token:   "t",
		Org:     "o",
		Bucket:  "b",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWritePortOccupancy(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(w, true)

	c.WritePortOccupancy(PortOccupancy{
		SiteID:        "installer-001",
		CentralID:     "central-7",
		Direction:     "input",
		Port:          2,
		KeysLimit:     24,
		KeysAvailable: 16,
		SlotsOccupied: 2,
		Available:     true,
	})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != MeasurementPortOccupancy {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Time().Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Time() = %v, want injected clock", p.Time())
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	wantTags := map[string]string{"site_id": "installer-001", "central_id": "central-7", "direction": "input", "port": "2"}
	for k, v := range wantTags {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["keys_available"] != int64(16) {
		t.Errorf("keys_available = %v (%T), want int64 16", fields["keys_available"], fields["keys_available"])
	}
	if fields["available"] != true || fields["malformed"] != false {
		t.Errorf("available/malformed = %v/%v", fields["available"], fields["malformed"])
	}
}

func TestWritePortOccupancy_ExplicitTime(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(w, true)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c.WritePortOccupancy(PortOccupancy{CentralID: "c", Direction: "output", At: at})

	if len(w.points) != 1 || !w.points[0].Time().Equal(at) {
		t.Fatalf("point time not honoured: %+v", w.points)
	}
}

func TestWritePortOccupancy_Disconnected(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(w, false)

	c.WritePortOccupancy(PortOccupancy{CentralID: "c"})
	c.Flush()

	if len(w.points) != 0 || w.flushes != 0 {
		t.Errorf("disconnected client wrote %d points, %d flushes", len(w.points), w.flushes)
	}
}

func TestForwardWriteErrors(t *testing.T) {
	c := newTestClient(&fakeWriter{}, true)

	var mu sync.Mutex
	var got []error
	c.SetOnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	})

	ch := make(chan error, 2)
	ch <- errors.New("bucket not found")
	ch <- errors.New("unauthorized")
	close(ch)
	c.forwardWriteErrors(ch)

	if len(got) != 2 {
		t.Errorf("callback saw %d errors, want 2", len(got))
	}
}

func TestClose_Nil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on empty client error = %v", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := newTestClient(&fakeWriter{}, false)
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		wantBatch uint
		wantFlush uint
	}{
		{"defaults", config.InfluxDBConfig{}, 100, 10_000},
		{"configured", config.InfluxDBConfig{BatchSize: 500, FlushInterval: 2}, 500, 2_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := writeOptions(tt.cfg)
			if opts.BatchSize() != tt.wantBatch || opts.FlushInterval() != tt.wantFlush {
				t.Errorf("batch=%d flush=%dms, want %d/%dms", opts.BatchSize(), opts.FlushInterval(), tt.wantBatch, tt.wantFlush)
			}
		})
	}
}
