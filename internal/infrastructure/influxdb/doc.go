// Package influxdb mirrors hub telemetry into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The Client is
// registered as an event and state observer on the services, so every
// stored event becomes a device_event point and every state write a
// device_state point:
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Hub.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	svc.Events.AddObserver(client)
//
// Writes are non-blocking and batched per batch_size and flush_interval.
// Asynchronous write failures are reported through SetOnError.
// InfluxDB is a mirror, never a source of truth: nothing reads it back.
package influxdb
