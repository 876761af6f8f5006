package telemetry

import (
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/history"
	"github.com/banshee-data/turret.aim/internal/spatial"
)

// MockPort is an in-memory Port producing synthetic telemetry for dev
// mode: the chassis drives a slow circle while the turret sweeps yaw and
// pitch sinusoidally. Commands written to the port are discarded.
type MockPort struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	done   chan struct{}
}

// NewMockPort starts a mock telemetry source emitting one O/Y/P triple
// per interval.
func NewMockPort(interval time.Duration) *MockPort {
	r, w := io.Pipe()
	p := &MockPort{reader: r, writer: w, done: make(chan struct{})}
	go p.run(interval)
	return p
}

func (p *MockPort) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			ts := history.Micros(now.Sub(start).Microseconds())

			yaw := Message{Kind: KindYaw, Timestamp: ts,
				Angle: spatial.Radians(0.8 * math.Sin(0.5*t))}
			pitch := Message{Kind: KindPitch, Timestamp: ts,
				Angle: spatial.Radians(0.3 * math.Sin(0.9*t))}
			heading := 0.1 * t
			odom := Message{Kind: KindOdometry, Timestamp: ts, Pose: spatial.Pose{
				Translation: r3.Vec{X: 2 * math.Cos(heading), Y: 2 * math.Sin(heading)},
				Rotation:    spatial.RotationAbout(spatial.Radians(heading), r3.Vec{Z: 1}),
			}}

			for _, m := range []Message{odom, yaw, pitch} {
				if _, err := io.WriteString(p.writer, FormatMessage(m)+"\n"); err != nil {
					return
				}
			}
		}
	}
}

// Read implements Port.
func (p *MockPort) Read(b []byte) (int, error) { return p.reader.Read(b) }

// Write implements Port; mock commands are accepted and dropped.
func (p *MockPort) Write(b []byte) (int, error) { return len(b), nil }

// Close stops the generator and unblocks readers.
func (p *MockPort) Close() error {
	close(p.done)
	p.writer.Close()
	return p.reader.Close()
}
