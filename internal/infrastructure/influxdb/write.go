package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementPortOccupancy is the measurement written per scanned port.
const MeasurementPortOccupancy = "port_occupancy"

// PortOccupancy is one port's state as seen by a scan.
type PortOccupancy struct {
	SiteID        string
	CentralID     string
	Direction     string
	Port          int
	KeysLimit     int
	KeysAvailable int
	SlotsOccupied int
	Available     bool
	Malformed     bool

	// At defaults to the current time.
	At time.Time
}

// WritePortOccupancy queues a port_occupancy point. Tags are site_id,
// central_id, direction and port; everything else is a field.
func (c *Client) WritePortOccupancy(o PortOccupancy) {
	if !c.IsConnected() {
		return
	}

	at := o.At
	if at.IsZero() {
		at = c.now()
	}

	point := write.NewPoint(
		MeasurementPortOccupancy,
		map[string]string{
			"site_id":    o.SiteID,
			"central_id": o.CentralID,
			"direction":  o.Direction,
			"port":       strconv.Itoa(o.Port),
		},
		map[string]interface{}{
			"keys_limit":     o.KeysLimit,
			"keys_available": o.KeysAvailable,
			"slots_occupied": o.SlotsOccupied,
			"available":      o.Available,
			"malformed":      o.Malformed,
		},
		at,
	)

	c.writer.WritePoint(point)
}
