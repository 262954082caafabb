// Package influxdb provides time-series storage for reader telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes, and health monitoring.
//
// # Purpose
//
// This package records:
//   - Reader board temperatures
//   - Reported state transitions
//   - Custom fleet-level measurements
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "openfab",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReaderTemperature("rdr-a1b2c3d4", "SN-00427", 41.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
package influxdb
