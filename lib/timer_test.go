package mcquad

import (
	"testing"
	"time"
)

func TestTimer_FiresAtPeriod(t *testing.T) {
	t.Parallel()

	fired := 0
	tm := NewTimer(10*time.Millisecond, func(c *Config) { fired++ })

	tm.Check(nil)
	if fired != 0 {
		t.Fatal("timer fired before its period elapsed")
	}

	time.Sleep(15 * time.Millisecond)
	tm.Check(nil)
	tm.Check(nil)
	if fired != 1 {
		t.Fatalf("timer fired %d times, want 1", fired)
	}
}

func TestTimer_ZeroPeriodNeverFires(t *testing.T) {
	t.Parallel()

	fired := 0
	tm := &Timer{Period: 0, Fire: func(c *Config) { fired++ }}
	tm.Check(nil)
	if fired != 0 {
		t.Error("zero-period timer fired")
	}
}
