// Package telemetry ingests the turret control board's serial stream:
// odometry poses and joint angles, timestamped by the board's clock, fed
// into the history buffers the transform composer queries.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/history"
	"github.com/banshee-data/turret.aim/internal/spatial"
)

// The board emits one CSV record per line. The leading tag selects the
// payload:
//
//	O,<ts_us>,<x>,<y>,<z>,<qw>,<qx>,<qy>,<qz>   chassis odometry pose
//	Y,<ts_us>,<rad>                             turret yaw joint angle
//	P,<ts_us>,<rad>                             turret pitch joint angle
const (
	tagOdometry = "O"
	tagYaw      = "Y"
	tagPitch    = "P"
)

// Kind identifies a telemetry payload type.
type Kind int

const (
	KindOdometry Kind = iota
	KindYaw
	KindPitch
)

func (k Kind) String() string {
	switch k {
	case KindOdometry:
		return "odometry"
	case KindYaw:
		return "yaw"
	case KindPitch:
		return "pitch"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrBadLine is returned by ParseLine for records that do not match the
// protocol. The stream is noisy at power-on; callers count and continue.
var ErrBadLine = errors.New("telemetry: malformed line")

// Message is one parsed telemetry record. Angle is set for yaw and pitch
// records, Pose for odometry records.
type Message struct {
	Kind      Kind
	Timestamp history.Micros
	Angle     spatial.Radians
	Pose      spatial.Pose
}

// ParseLine parses one line of the board's telemetry protocol.
func ParseLine(line string) (Message, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 {
		return Message{}, fmt.Errorf("%w: %q", ErrBadLine, line)
	}

	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: timestamp %q: %v", ErrBadLine, fields[1], err)
	}

	switch fields[0] {
	case tagYaw, tagPitch:
		if len(fields) != 3 {
			return Message{}, fmt.Errorf("%w: %q: want 3 fields, got %d", ErrBadLine, line, len(fields))
		}
		angle, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Message{}, fmt.Errorf("%w: angle %q: %v", ErrBadLine, fields[2], err)
		}
		kind := KindYaw
		if fields[0] == tagPitch {
			kind = KindPitch
		}
		return Message{Kind: kind, Timestamp: history.Micros(ts), Angle: spatial.Radians(angle)}, nil

	case tagOdometry:
		if len(fields) != 9 {
			return Message{}, fmt.Errorf("%w: %q: want 9 fields, got %d", ErrBadLine, line, len(fields))
		}
		var v [7]float64
		for i := range v {
			v[i], err = strconv.ParseFloat(fields[i+2], 64)
			if err != nil {
				return Message{}, fmt.Errorf("%w: field %q: %v", ErrBadLine, fields[i+2], err)
			}
		}
		return Message{
			Kind:      KindOdometry,
			Timestamp: history.Micros(ts),
			Pose: spatial.Pose{
				Translation: r3.Vec{X: v[0], Y: v[1], Z: v[2]},
				Rotation:    quat.Number{Real: v[3], Imag: v[4], Jmag: v[5], Kmag: v[6]},
			},
		}, nil
	}
	return Message{}, fmt.Errorf("%w: unknown tag %q", ErrBadLine, fields[0])
}

// FormatMessage renders a Message back into its wire form. Used by the
// mock telemetry source and the plotting tool.
func FormatMessage(m Message) string {
	switch m.Kind {
	case KindYaw:
		return fmt.Sprintf("%s,%d,%g", tagYaw, m.Timestamp, float64(m.Angle))
	case KindPitch:
		return fmt.Sprintf("%s,%d,%g", tagPitch, m.Timestamp, float64(m.Angle))
	default:
		t, q := m.Pose.Translation, m.Pose.Rotation
		return fmt.Sprintf("%s,%d,%g,%g,%g,%g,%g,%g,%g",
			tagOdometry, m.Timestamp, t.X, t.Y, t.Z, q.Real, q.Imag, q.Jmag, q.Kmag)
	}
}
