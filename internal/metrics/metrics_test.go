package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"bgservice/internal/controller"
)

func TestObserve_TracksStateAndTriggers(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetState("sync", controller.StateNotRunning)

	m.Observe(controller.Transition{Service: "sync", From: controller.StateNotRunning, To: controller.StateRunning, Trigger: controller.TriggerStartCommand})
	m.Observe(controller.Transition{Service: "sync", From: controller.StateRunning, To: controller.StateRunningForeground, Trigger: controller.TriggerEnterForeground})

	tests := map[string]float64{
		"not-running":        0,
		"running":            0,
		"running-foreground": 1,
	}
	for state, want := range tests {
		if got := testutil.ToFloat64(m.state.WithLabelValues("sync", state)); got != want {
			t.Errorf("bgservice_state{state=%q} = %v, want %v", state, got, want)
		}
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("sync", "start-command")); got != 1 {
		t.Errorf("start-command transitions = %v, want 1", got)
	}
}

func TestRegisterDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	var dropped uint64 = 3
	m.RegisterDropped(func() uint64 { return dropped })

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "bgservice_events_dropped_total" {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 3 {
				t.Errorf("dropped = %v, want 3", v)
			}
			return
		}
	}
	t.Fatal("bgservice_events_dropped_total not registered")
}
