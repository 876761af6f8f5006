package telemetry

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/spatial"
)

func TestParseLineYaw(t *testing.T) {
	msg, err := ParseLine("Y,1724000123,0.785398")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if msg.Kind != KindYaw {
		t.Errorf("kind = %v, want yaw", msg.Kind)
	}
	if msg.Timestamp != 1724000123 {
		t.Errorf("timestamp = %d, want 1724000123", msg.Timestamp)
	}
	if math.Abs(float64(msg.Angle)-0.785398) > 1e-12 {
		t.Errorf("angle = %v, want 0.785398", msg.Angle)
	}
}

func TestParseLinePitch(t *testing.T) {
	msg, err := ParseLine("P,42,-0.25")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if msg.Kind != KindPitch || msg.Timestamp != 42 || msg.Angle != -0.25 {
		t.Errorf("got %+v", msg)
	}
}

func TestParseLineOdometry(t *testing.T) {
	msg, err := ParseLine("O,1000,1.5,-2,0.25,0.7071,0,0,0.7071")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	want := Message{
		Kind:      KindOdometry,
		Timestamp: 1000,
		Pose: spatial.Pose{
			Translation: r3.Vec{X: 1.5, Y: -2, Z: 0.25},
			Rotation:    quat.Number{Real: 0.7071, Kmag: 0.7071},
		},
	}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLineTrimsWhitespace(t *testing.T) {
	if _, err := ParseLine("Y,1,0.5\r"); err != nil {
		t.Errorf("ParseLine with trailing CR: %v", err)
	}
}

func TestParseLineRejectsMalformed(t *testing.T) {
	lines := []string{
		"",
		"Y",
		"X,1,0.5",
		"Y,notatime,0.5",
		"Y,1,notanangle",
		"Y,1,0.5,extra",
		"O,1,1,2,3",
		"O,1,1,2,3,4,5,6,bad",
	}
	for _, line := range lines {
		if _, err := ParseLine(line); !errors.Is(err, ErrBadLine) {
			t.Errorf("ParseLine(%q) error = %v, want ErrBadLine", line, err)
		}
	}
}

func TestFormatMessageRoundTrip(t *testing.T) {
	msgs := []Message{
		{Kind: KindYaw, Timestamp: 123, Angle: 0.5},
		{Kind: KindPitch, Timestamp: 456, Angle: -1.25},
		{Kind: KindOdometry, Timestamp: 789, Pose: spatial.Pose{
			Translation: r3.Vec{X: 1, Y: -2, Z: 0.5},
			Rotation:    quat.Number{Real: 1},
		}},
	}
	for _, want := range msgs {
		got, err := ParseLine(FormatMessage(want))
		if err != nil {
			t.Fatalf("round trip %v: %v", want.Kind, err)
		}
		if got != want {
			t.Errorf("round trip %v: got %+v, want %+v", want.Kind, got, want)
		}
	}
}
