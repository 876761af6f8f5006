package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/turret.aim/internal/history"
	"github.com/banshee-data/turret.aim/internal/monitoring"
	"github.com/banshee-data/turret.aim/internal/spatial"
)

// Buffers groups the history buffers the ingestor feeds and the transform
// composer reads.
type Buffers struct {
	Yaw   *history.Buffer[spatial.Radians]
	Pitch *history.Buffer[spatial.Radians]
	Odom  *history.Buffer[spatial.Pose]
}

// NewBuffers creates the three telemetry buffers with shared retention
// bounds.
func NewBuffers(cfg history.Config) (Buffers, error) {
	yaw, err := history.New[spatial.Radians](cfg)
	if err != nil {
		return Buffers{}, err
	}
	pitch, err := history.New[spatial.Radians](cfg)
	if err != nil {
		return Buffers{}, err
	}
	odom, err := history.New[spatial.Pose](cfg)
	if err != nil {
		return Buffers{}, err
	}
	return Buffers{Yaw: yaw, Pitch: pitch, Odom: odom}, nil
}

// Ingestor consumes the mux's line stream, parses each record and inserts
// it into the matching history buffer.
//
// Malformed lines and stale timestamps are counted and logged, never
// fatal: the board emits garbage during power-on and may retransmit after
// link hiccups.
type Ingestor struct {
	buffers Buffers

	// offset corrects for the known skew between the board clock and the
	// camera timestamps.
	offset history.Micros

	metrics *monitoring.Metrics
	rate    *monitoring.UpdateRateMonitor

	// Sink, when set, receives every accepted message. The session
	// recorder uses this to log telemetry without a second subscriber.
	Sink func(Message)
}

// NewIngestor creates an Ingestor feeding the given buffers. metrics may
// be nil to use the process default; rate may be nil to disable cadence
// tracking.
func NewIngestor(buffers Buffers, offset time.Duration, metrics *monitoring.Metrics, rate *monitoring.UpdateRateMonitor) *Ingestor {
	if metrics == nil {
		metrics = monitoring.Default
	}
	return &Ingestor{
		buffers: buffers,
		offset:  history.MicrosFromDuration(offset),
		metrics: metrics,
		rate:    rate,
	}
}

// Run subscribes to the mux and ingests lines until the context is
// cancelled or the mux closes the subscription.
func (in *Ingestor) Run(ctx context.Context, mux *Mux) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			in.ingest(line)
		}
	}
}

func (in *Ingestor) ingest(line string) {
	msg, err := ParseLine(line)
	if err != nil {
		in.metrics.TelemetryParseErrors.Add(1)
		monitoring.Logf("[Telemetry] %v", err)
		return
	}
	msg.Timestamp += in.offset

	switch msg.Kind {
	case KindYaw:
		err = in.buffers.Yaw.Insert(msg.Timestamp, msg.Angle)
	case KindPitch:
		err = in.buffers.Pitch.Insert(msg.Timestamp, msg.Angle)
	case KindOdometry:
		err = in.buffers.Odom.Insert(msg.Timestamp, msg.Pose)
	}
	if err != nil {
		if errors.Is(err, history.ErrOutOfOrder) {
			in.metrics.TelemetryOutOfOrder.Add(1)
			monitoring.Logf("[Telemetry] dropped stale %s sample at t=%dus", msg.Kind, msg.Timestamp)
			return
		}
		monitoring.Logf("[Telemetry] insert %s sample: %v", msg.Kind, err)
		return
	}

	in.metrics.TelemetryLines.Add(1)
	if in.rate != nil {
		in.rate.RecordUpdate()
	}
	if in.Sink != nil {
		in.Sink(msg)
	}
}
