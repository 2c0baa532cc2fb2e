// Package influxdb records bridge telemetry in InfluxDB.
//
// A Sink wraps the influxdb-client-go v2 non-blocking write API. It
// implements the heartbeat and engage recorder hooks, so every
// heartbeat send and every engage update becomes a point:
//
//	heartbeat,authority=EGOVehicle,destination=vehicle/adas-actor/event_created ok=true,latency_ms=1.2
//	engage,authority=EGOVehicle value="true",valid=true
//
// # Usage
//
//	sink, err := influxdb.Open(ctx, cfg.InfluxDB, cfg.Bridge.Authority)
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
//	publisher.AddRecorder(sink)
//
// Batch write failures arrive on the SetOnError callback; Open and
// HealthCheck return errors directly.
package influxdb
