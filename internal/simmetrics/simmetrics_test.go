// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package simmetrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecordPacketRelayedIncrementsCounters(t *testing.T) {
	c := New()
	c.RecordPacketRelayed("host1", 128)
	c.RecordPacketRelayed("host1", 64)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `netsim_packets_relayed_total{host="host1"} 2`) {
		t.Errorf("expected packet counter of 2 for host1, got body:\n%s", body)
	}
	if !strings.Contains(body, `netsim_bytes_relayed_total{host="host1"} 192`) {
		t.Errorf("expected byte counter of 192 for host1, got body:\n%s", body)
	}
}

func TestSetActiveSocketsReflectsLatestValue(t *testing.T) {
	c := New()
	c.SetActiveSockets(3)
	c.SetActiveSockets(5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "netsim_active_sockets 5") {
		t.Errorf("expected active sockets gauge of 5, got body:\n%s", rec.Body.String())
	}
}

func TestRecordPacketDroppedLabelsByReason(t *testing.T) {
	c := New()
	c.RecordPacketDropped("host1", "qdisc_full")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `netsim_packets_dropped_total{host="host1",reason="qdisc_full"} 1`) {
		t.Errorf("expected labeled drop counter, got body:\n%s", rec.Body.String())
	}
}
