package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	m := New()
	c := NewCollector(m, time.Hour)
	c.Start()
	c.Stop()

	if got := testutil.ToFloat64(m.Goroutines); got < 1 {
		t.Errorf("goroutines = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(m.UptimeSeconds); got < 0 {
		t.Errorf("uptime = %v", got)
	}
}
