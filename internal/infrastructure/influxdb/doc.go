// Package influxdb records port occupancy telemetry in InfluxDB v2.
//
// After every successful scan the console writes one port_occupancy point
// per port, so installers can chart how full each central is over time.
// Writes are non-blocking and batched by the client library; failures are
// reported through the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	}
//	defer client.Close()
//
//	client.WritePortOccupancy(influxdb.PortOccupancy{CentralID: "central-7", ...})
package influxdb
