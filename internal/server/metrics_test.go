package server

import "testing"

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.incAnswered()
	m.incForwarded()
	m.incServfail()
	m.incNotImp()
}

func TestNewMetrics_NilRegistererSkipsRegistration(t *testing.T) {
	m := NewMetrics(nil)
	if m == nil {
		t.Fatal("NewMetrics(nil) should still return usable counters")
	}
	m.incAnswered()
}
