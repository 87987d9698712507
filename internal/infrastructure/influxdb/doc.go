// Package influxdb provides InfluxDB connectivity for the hc2sync relay.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, property metric writing, and health monitoring.
//
// # Measurements
//
//   - device_properties{device_id, identifier, property} value=<float>
//     one point per numeric or boolean property change
//   - controller_status{kind} connected=<0|1>,last=<int>
//     one point per controller status transition
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "hc2",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePropertyMetric(42, "kitchen/light", "value", 55, time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; failures surface through SetOnError. Connection and
// health check errors are returned directly.
package influxdb
