package telemetry

import (
	"bufio"
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestPortOptionsNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if opts.BaudRate != 460800 || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("defaults = %+v", opts)
	}
}

func TestPortOptionsNormalizeRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		opts PortOptions
	}{
		{"data bits", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "M"}},
	}
	for _, tc := range cases {
		if _, err := tc.opts.Normalize(); err == nil {
			t.Errorf("%s: Normalize accepted %+v", tc.name, tc.opts)
		}
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 115200, Parity: "even"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.BaudRate != 115200 || mode.DataBits != 8 || mode.Parity != serial.EvenParity {
		t.Errorf("mode = %+v", mode)
	}
}

func TestMockPortEmitsParseableTelemetry(t *testing.T) {
	port := NewMockPort(time.Millisecond)
	defer port.Close()

	scan := bufio.NewScanner(port)
	kinds := make(map[Kind]int)
	for i := 0; i < 9 && scan.Scan(); i++ {
		msg, err := ParseLine(scan.Text())
		if err != nil {
			t.Fatalf("mock line %q: %v", scan.Text(), err)
		}
		kinds[msg.Kind]++
	}
	for _, k := range []Kind{KindOdometry, KindYaw, KindPitch} {
		if kinds[k] == 0 {
			t.Errorf("mock stream produced no %v records", k)
		}
	}
}
