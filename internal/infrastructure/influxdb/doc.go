// Package influxdb records gate activity in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements
// are written:
//
//	gate_command  tags command, outcome; fields success (0/1), duration_ms
//	gate_status   tag source; field status
//
// The Client implements gate.CommandObserver and gate.Sink, so it plugs
// into the relay and the broadcaster directly:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	relay.SetObserver(client)
//	broadcaster.AddSink("influxdb", client)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write failures are delivered to the
// callback set with SetOnError.
package influxdb
