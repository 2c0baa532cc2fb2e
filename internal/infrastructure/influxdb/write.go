package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurementHeartbeat = "heartbeat"
	measurementEngage    = "engage"
)

// RecordHeartbeat implements heartbeat.Recorder.
func (s *Sink) RecordHeartbeat(destination string, latency time.Duration, err error) {
	s.write(heartbeatPoint(destination, latency, err, time.Now()))
}

// RecordEngage implements engage.Recorder.
func (s *Sink) RecordEngage(value string, valid bool) {
	s.write(engagePoint(value, valid, time.Now()))
}

func (s *Sink) write(p *write.Point) {
	if !s.open() {
		return
	}
	s.writer.WritePoint(p)
}

// heartbeatPoint carries the send outcome; latency is in fractional
// milliseconds and error is only present on failure.
func heartbeatPoint(destination string, latency time.Duration, err error, ts time.Time) *write.Point {
	p := write.NewPointWithMeasurement(measurementHeartbeat).
		AddTag("destination", destination).
		AddField("ok", err == nil).
		AddField("latency_ms", float64(latency.Microseconds())/1000).
		SetTime(ts)
	if err != nil {
		p.AddField("error", err.Error())
	}
	return p
}

func engagePoint(value string, valid bool, ts time.Time) *write.Point {
	return write.NewPointWithMeasurement(measurementEngage).
		AddField("value", value).
		AddField("valid", valid).
		SetTime(ts)
}
