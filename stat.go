package mqttpacket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Stat struct {
	Uptime         prometheus.Counter
	PacketEncoded  *prometheus.CounterVec
	ByteEncoded    *prometheus.CounterVec
	EncodeErrors   *prometheus.CounterVec
	PacketDecoded  *prometheus.CounterVec
	ByteDecoded    *prometheus.CounterVec
	DecodeErrors   *prometheus.CounterVec
	ConnackRefused prometheus.Counter
}

func NewStat() *Stat {
	return &Stat{
		Uptime:         prometheus.NewCounter(prometheus.CounterOpts{Name: "mqttpacket_uptime_seconds", Help: "The uptime in seconds"}),
		PacketEncoded:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqttpacket_encoded_packets", Help: "The total number of encoded MQTT packets"}, []string{"kind"}),
		ByteEncoded:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqttpacket_encoded_bytes", Help: "The total number of encoded MQTT bytes"}, []string{"kind"}),
		EncodeErrors:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqttpacket_encode_errors", Help: "The total number of rejected encode calls"}, []string{"kind"}),
		PacketDecoded:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqttpacket_decoded_packets", Help: "The total number of decoded MQTT packets"}, []string{"kind"}),
		ByteDecoded:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqttpacket_decoded_bytes", Help: "The total number of decoded MQTT bytes"}, []string{"kind"}),
		DecodeErrors:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqttpacket_decode_errors", Help: "The total number of failed decode calls"}, []string{"kind"}),
		ConnackRefused: prometheus.NewCounter(prometheus.CounterOpts{Name: "mqttpacket_connack_refused", Help: "The total number of decoded CONNACK packets with a nonzero return code"}),
	}
}

var stat = NewStat()

func (s *Stat) encoded(kind byte, n int) {
	s.PacketEncoded.WithLabelValues(kindLabel(kind)).Inc()
	s.ByteEncoded.WithLabelValues(kindLabel(kind)).Add(float64(n))
}

func (s *Stat) encodeFailed(kind byte) {
	s.EncodeErrors.WithLabelValues(kindLabel(kind)).Inc()
}

func (s *Stat) decoded(kind byte, n int) {
	s.PacketDecoded.WithLabelValues(kindLabel(kind)).Inc()
	s.ByteDecoded.WithLabelValues(kindLabel(kind)).Add(float64(n))
}

func (s *Stat) decodeFailed(kind byte) {
	s.DecodeErrors.WithLabelValues(kindLabel(kind)).Inc()
}

// RefreshUptime increments Uptime once per second until ctx is done.
func (s *Stat) RefreshUptime(ctx context.Context) {
	go func() {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				s.Uptime.Inc()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Register adds every collector to reg. Collectors already registered are not an error.
func (s *Stat) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		s.Uptime, s.PacketEncoded, s.ByteEncoded, s.EncodeErrors,
		s.PacketDecoded, s.ByteDecoded, s.DecodeErrors, s.ConnackRefused,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func ServerLog(ctx context.Context, stat *requests.Stat) {
	b, err := json.Marshal(stat.Request.Body)
	log.Debugf("%s # body=%s, resp=%v, err=%v", stat.Print(), b, stat.Response.Body, err)
}

// Httpd serves the inspector on CONFIG.HTTP.URL until ctx is cancelled.
func Httpd(ctx context.Context) error {
	if err := stat.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	stat.RefreshUptime(ctx)
	mux := NewServeMux(requests.URL(CONFIG.HTTP.URL), requests.Logf(ServerLog))
	mux.Route("/metrics", promhttp.Handler())
	mux.Pprof()
	s := requests.NewServer(ctx, mux, requests.OnStart(func(s *http.Server) {
		log.Infof("http serve: %s", s.Addr)
	}))
	return s.ListenAndServe()
}
