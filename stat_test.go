package mqttpacket

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatRegister(t *testing.T) {
	s := NewStat()
	reg := prometheus.NewRegistry()
	if err := s.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// 重复注册不是错误
	if err := s.Register(reg); err != nil {
		t.Fatalf("Register() twice error = %v", err)
	}

	s.encoded(PUBLISH, 14)
	s.decodeFailed(CONNACK)
	if got := testutil.ToFloat64(s.PacketEncoded.WithLabelValues("publish")); got != 1 {
		t.Errorf("PacketEncoded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.ByteEncoded.WithLabelValues("publish")); got != 14 {
		t.Errorf("ByteEncoded = %v, want 14", got)
	}

	expected := `
# HELP mqttpacket_decode_errors The total number of failed decode calls
# TYPE mqttpacket_decode_errors counter
mqttpacket_decode_errors{kind="connack"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "mqttpacket_decode_errors"); err != nil {
		t.Error(err)
	}
}

func TestStatRegister_Conflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	// 同名但不同类型的指标
	if err := reg.Register(prometheus.NewGauge(prometheus.GaugeOpts{Name: "mqttpacket_uptime_seconds", Help: "x"})); err != nil {
		t.Fatal(err)
	}
	if err := NewStat().Register(reg); err == nil {
		t.Error("Register() should fail on a conflicting collector")
	}
}

func TestStatRefreshUptime(t *testing.T) {
	s := NewStat()
	ctx, cancel := context.WithCancel(context.Background())
	s.RefreshUptime(ctx)
	time.Sleep(1100 * time.Millisecond)
	cancel()
	if got := testutil.ToFloat64(s.Uptime); got < 1 {
		t.Errorf("Uptime = %v, want >= 1", got)
	}
}

func TestStatUnknownKind(t *testing.T) {
	s := NewStat()
	s.decodeFailed(FORBIDDEN)
	if got := testutil.ToFloat64(s.DecodeErrors.WithLabelValues("unknown")); got != 1 {
		t.Errorf("DecodeErrors{unknown} = %v, want 1", got)
	}
}
