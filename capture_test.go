package mqttpacket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/golang-io/mqttpacket/packet"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func session(t *testing.T) ([]byte, []int) {
	t.Helper()
	var stream []byte
	var sizes []int
	add := func(b []byte, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		stream = append(stream, b...)
		sizes = append(sizes, len(b))
	}
	add(SerializeConnect(NewConnectOptions(ClientID("capture"))))
	add([]byte{0x20, 0x02, 0x00, 0x00}, nil)
	add(SerializeSubscribe(1, packet.Subscription{TopicFilter: "a/+", MaximumQoS: 1}))
	add([]byte{0x90, 0x03, 0x00, 0x01, 0x01}, nil)
	add(SerializePublish("a/b", []byte("1"), PublishOptions{QoS: 1, PacketID: 2}))
	add(SerializeAck(PUBACK, false, 2))
	add(SerializePublish("c", nil, PublishOptions{}))
	add(SerializeUnsubscribe(3, "a/+"))
	add(SerializePublish("a/c", []byte("2"), PublishOptions{QoS: 2, PacketID: 4}))
	add(SerializeAck(PUBCOMP, false, 9))
	add(SerializeDisconnect())
	return stream, sizes
}

func TestCapture_Walk(t *testing.T) {
	stream, sizes := session(t)
	c, err := NewCapture("#")
	if err != nil {
		t.Fatalf("NewCapture() error = %v", err)
	}
	var records []*Record
	if err := c.Walk(context.Background(), bytes.NewReader(stream), func(rec *Record) error {
		records = append(records, rec)
		return nil
	}); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(records) != len(sizes) {
		t.Fatalf("Walk() records = %d, want %d", len(records), len(sizes))
	}

	var offset int64
	for n, rec := range records {
		if rec.Offset != offset || rec.Size != int64(sizes[n]) {
			t.Errorf("record %d offset/size = %d/%d, want %d/%d", n, rec.Offset, rec.Size, offset, sizes[n])
		}
		if rec.Kind != packet.Kind[rec.Packet.Kind()] {
			t.Errorf("record %d kind = %s", n, rec.Kind)
		}
		offset += rec.Size
	}

	tests := []struct {
		n       int
		matches []string
	}{
		{4, []string{"#", "a/+"}},
		{6, []string{"#"}},
		{8, []string{"#"}}, // UNSUBSCRIBE 之后
	}
	for _, tt := range tests {
		if got := records[tt.n].Matches; !slices.Equal(got, tt.matches) {
			t.Errorf("record %d matches = %v, want %v", tt.n, got, tt.matches)
		}
	}
	if records[5].Note != "" {
		t.Errorf("PUBACK note = %q, want empty", records[5].Note)
	}
	if records[9].Note == "" {
		t.Error("PUBCOMP without publish should carry a note")
	}
	if got := c.Pending(); !slices.Equal(got, []uint16{4}) {
		t.Errorf("Pending() = %v, want [4]", got)
	}
}

func TestCapture_Next(t *testing.T) {
	c, err := NewCapture()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Next(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("Next() on empty stream error = %v, want io.EOF", err)
	}

	b, _ := SerializePingreq()
	r := bytes.NewReader(append(b, 0x30, 0x05, 0x00))
	if rec, err := c.Next(r); err != nil || rec.Offset != 0 {
		t.Fatalf("Next() = %+v, %v", rec, err)
	}
	_, err = c.Next(r)
	if err == nil || !strings.HasPrefix(err.Error(), "offset 2:") {
		t.Errorf("Next() truncated error = %v, want offset 2 prefix", err)
	}
}

func TestCapture_Errors(t *testing.T) {
	if _, err := NewCapture("a/#/b"); err == nil {
		t.Error("NewCapture() with invalid filter should fail")
	}

	stream, _ := session(t)
	c, _ := NewCapture()
	stop := errors.New("stop")
	var n int
	err := c.Walk(context.Background(), bytes.NewReader(stream), func(*Record) error {
		if n++; n == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 3 {
		t.Errorf("Walk() = %v after %d records, want stop after 3", err, n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Walk(ctx, bytes.NewReader(stream), func(*Record) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Walk() cancelled error = %v", err)
	}

	// 报文类型 0 无法解析
	c, _ = NewCapture()
	err = c.Walk(context.Background(), bytes.NewReader([]byte{0x00, 0x00}), func(*Record) error { return nil })
	if !packet.IsMalformed(err) {
		t.Errorf("Walk() reserved kind error = %v, want malformed", err)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestCapture_DecodeErrorsCountOnlyMalformed(t *testing.T) {
	c, _ := NewCapture()
	before := testutil.ToFloat64(stat.DecodeErrors.WithLabelValues("unknown"))

	closed := errors.New("connection closed")
	if _, err := c.Next(failingReader{err: closed}); !errors.Is(err, closed) {
		t.Fatalf("Next() error = %v, want %v", err, closed)
	}
	if got := testutil.ToFloat64(stat.DecodeErrors.WithLabelValues("unknown")) - before; got != 0 {
		t.Errorf("reader error counted as decode failure, delta = %v", got)
	}

	if _, err := c.Next(bytes.NewReader([]byte{0x30, 0x05, 0x00})); !packet.IsMalformed(err) {
		t.Fatalf("Next() truncated error = %v, want malformed", err)
	}
	if got := testutil.ToFloat64(stat.DecodeErrors.WithLabelValues("unknown")) - before; got != 1 {
		t.Errorf("decode errors delta = %v, want 1", got)
	}
}
