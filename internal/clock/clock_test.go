package clock

import (
	"testing"
	"time"
)

func TestFakeNowAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now = %v, want %v", c.Now(), start)
	}
	c.Advance(90 * time.Second)
	if got := c.Now().Sub(start); got != 90*time.Second {
		t.Fatalf("elapsed = %s, want 90s", got)
	}
}

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	select {
	case <-ticker.C:
		t.Fatal("ticker fired before advance")
	default:
	}

	c.Advance(3 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("expected a tick after advance")
	}
	select {
	case <-ticker.C:
		t.Fatal("expected missed ticks to be dropped")
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	ticker.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestRealClockImplementsClock(t *testing.T) {
	var _ Clock = Real()
	var _ Clock = NewFake(time.Now())
}
