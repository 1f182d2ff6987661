package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value gathers reg and returns the value of the sample named name whose
// labels include every pair in labels.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	samples:
		for _, m := range f.GetMetric() {
			got := make(map[string]string)
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue samples
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestMetrics_Lifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	for i := 0; i < 3; i++ {
		m.RecordCreated("Connecting")
	}
	m.ConnectAccepted()
	m.ConnectAccepted()
	m.RecordRemoved("Connecting")
	m.ConnectRejected()
	m.StatusChanged("Connecting", "Open")
	m.StatusChanged("Connecting", "Failed")

	assert.Equal(t, 2.0, value(t, reg, "wsctl_connection_connects_total", map[string]string{"result": "accepted"}))
	assert.Equal(t, 1.0, value(t, reg, "wsctl_connection_connects_total", map[string]string{"result": "rejected"}))
	assert.Equal(t, 0.0, value(t, reg, "wsctl_connection_records", map[string]string{"status": "Connecting"}))
	assert.Equal(t, 1.0, value(t, reg, "wsctl_connection_records", map[string]string{"status": "Open"}))
	assert.Equal(t, 1.0, value(t, reg, "wsctl_connection_records", map[string]string{"status": "Failed"}))
	assert.Equal(t, 1.0, value(t, reg, "wsctl_connection_transitions_total", map[string]string{"to": "Open"}))
}

func TestMetrics_Messages(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.MessageReceived(true)
	m.MessageReceived(false)
	m.MessageReceived(false)
	m.MessageSent(nil)
	m.MessageSent(errors.New("not open"))

	assert.Equal(t, 1.0, value(t, reg, "wsctl_connection_messages_total", map[string]string{"direction": "in", "kind": "text"}))
	assert.Equal(t, 2.0, value(t, reg, "wsctl_connection_messages_total", map[string]string{"direction": "in", "kind": "binary"}))
	assert.Equal(t, 2.0, value(t, reg, "wsctl_connection_messages_total", map[string]string{"direction": "out", "kind": "text"}))
	assert.Equal(t, 1.0, value(t, reg, "wsctl_connection_send_errors_total", nil))
}

func TestMetrics_InstanceLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "node-7")
	m.ConnectRejected()

	assert.Equal(t, 1.0, value(t, reg, "wsctl_connection_connects_total", map[string]string{"instance_id": "node-7"}))
}

func TestMetrics_NilRegisterer(t *testing.T) {
	assert.NotPanics(t, func() {
		m := New(nil, "test")
		m.ConnectRejected()
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectAccepted()
		m.RecordCreated("Connecting")
		m.RecordRemoved("Connecting")
		m.ConnectRejected()
		m.StatusChanged("Connecting", "Open")
		m.MessageReceived(true)
		m.MessageSent(nil)
	})
}
