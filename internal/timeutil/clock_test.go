package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	got := clock.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	clock := RealClock{}
	start := time.Now().Add(-time.Second)

	if got := clock.Since(start); got < time.Second {
		t.Errorf("Since() = %v, want >= 1s", got)
	}
}

func TestRealClockNewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClockNowAndSet(t *testing.T) {
	base := time.Unix(1000, 0)
	clock := NewMockClock(base)

	if got := clock.Now(); !got.Equal(base) {
		t.Errorf("Now() = %v, want %v", got, base)
	}

	later := base.Add(time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestMockClockAdvance(t *testing.T) {
	base := time.Unix(1000, 0)
	clock := NewMockClock(base)

	clock.Advance(30 * time.Second)
	want := base.Add(30 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestMockClockSince(t *testing.T) {
	base := time.Unix(1000, 0)
	clock := NewMockClock(base)
	clock.Advance(5 * time.Second)

	if got := clock.Since(base); got != 5*time.Second {
		t.Errorf("Since() = %v, want 5s", got)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire after Advance past interval")
	}
}

func TestMockTickerFiresRepeatedly(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		select {
		case <-ticker.C():
		default:
			t.Fatalf("tick %d: ticker did not fire", i)
		}
	}
}

func TestMockTickerStop(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	ticker := clock.NewTicker(time.Second)

	ticker.Stop()
	clock.Advance(2 * time.Second)

	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockTickerDropsTicksWhenUnread(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	// Two elapsed intervals with no reader: the buffered channel holds
	// one tick and the second is dropped, matching time.Ticker behavior.
	clock.Advance(time.Second)
	clock.Advance(time.Second)

	<-ticker.C()
	select {
	case <-ticker.C():
		t.Fatal("second tick should have been dropped")
	default:
	}
}
