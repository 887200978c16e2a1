package influxdb

import "errors"

// Sentinels returned by Connect and HealthCheck. Occupancy writes never
// fail synchronously; asynchronous failures go to the SetOnError callback.
var (
	ErrDisabled         = errors.New("influxdb: occupancy history disabled")
	ErrConnectionFailed = errors.New("influxdb: cannot reach server")
	ErrNotConnected     = errors.New("influxdb: client closed or never connected")
)
