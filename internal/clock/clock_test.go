package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	c := NewManual(epoch)
	var got []string
	var at []time.Time
	c.AfterFunc(2*time.Second, func() { got = append(got, "b"); at = append(at, c.Now()) })
	c.AfterFunc(1*time.Second, func() { got = append(got, "a"); at = append(at, c.Now()) })
	c.AfterFunc(5*time.Second, func() { got = append(got, "c") })

	c.Advance(3 * time.Second)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("fired = %v, want [a b]", got)
	}
	if !at[0].Equal(epoch.Add(time.Second)) || !at[1].Equal(epoch.Add(2*time.Second)) {
		t.Errorf("callbacks observed %v, want their own deadlines", at)
	}
	if !c.Now().Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("Now = %v, want %v", c.Now(), epoch.Add(3*time.Second))
	}
	if c.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", c.Pending())
	}
}

func TestManual_Stop(t *testing.T) {
	c := NewManual(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Error("Stop on pending timer = false, want true")
	}
	if tm.Stop() {
		t.Error("second Stop = true, want false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestManual_OverdueFiresOnZeroAdvance(t *testing.T) {
	c := NewManual(epoch)
	fired := 0
	c.AfterFunc(-time.Second, func() { fired++ })
	c.Advance(0)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestManual_CallbackMaySchedule(t *testing.T) {
	c := NewManual(epoch)
	fired := 0
	c.AfterFunc(time.Second, func() {
		fired++
		c.AfterFunc(time.Second, func() { fired++ })
	})
	c.Advance(5 * time.Second)
	if fired != 2 {
		t.Errorf("fired = %d, want 2", fired)
	}
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer did not fire")
	}
}
