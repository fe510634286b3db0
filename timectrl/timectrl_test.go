package timectrl

import (
	"sync"
	"testing"
	"time"
)

func TestFixedClockSetTime(t *testing.T) {
	start := time.Date(2026, time.January, 24, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)

	newNow := start.Add(42 * time.Second)
	c.SetTime(newNow)

	if got := c.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestFixedClockAdvanceConcurrent(t *testing.T) {
	start := time.Date(2026, time.January, 24, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()

	if got, want := c.Now(), start.Add(10*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestOrDefault(t *testing.T) {
	if _, ok := OrDefault(nil).(SystemClock); !ok {
		t.Fatalf("OrDefault(nil) should return SystemClock")
	}
	fc := NewFixedClock(time.Unix(0, 0))
	if OrDefault(fc) != Clock(fc) {
		t.Fatalf("OrDefault should keep a non-nil clock")
	}
	if loc := (SystemClock{}).Now().Location(); loc != time.UTC {
		t.Fatalf("SystemClock location = %v, want UTC", loc)
	}
}
