package mqttpacket

import (
	"context"
	"fmt"
	"io"

	"github.com/golang-io/mqttpacket/packet"
	"github.com/golang-io/mqttpacket/topic"
	log "github.com/sirupsen/logrus"
)

// Record 抓包中的一个报文以及对它的标注
type Record struct {
	Offset int64         `json:"offset"`
	Size   int64         `json:"size"`
	Kind   string        `json:"kind"`
	Packet packet.Packet `json:"packet"`

	// Matches PUBLISH 报文的主题名匹配到的已登记过滤器
	Matches []string `json:"matches,omitempty"`

	// Note QoS 确认流程中的异常, 例如没有对应 PUBLISH 的 PUBACK
	Note string `json:"note,omitempty"`
}

// Capture splits a byte stream of concatenated MQTT packets, such as one
// direction or both directions of a recorded session, into Records.
//
// 每个 SUBSCRIBE 的过滤器登记到主题树中, UNSUBSCRIBE 将其删除,
// 之后出现的 PUBLISH 标注出匹配的过滤器. QoS 1, 2 的确认流程由 InFight 跟踪.
type Capture struct {
	subscribed *topic.MemoryTrie
	inFight    *InFight
	offset     int64
}

// NewCapture returns a Capture with filters already subscribed.
func NewCapture(filters ...string) (*Capture, error) {
	c := &Capture{subscribed: topic.NewMemoryTrie(), inFight: newInFight()}
	for _, filter := range filters {
		if err := c.subscribed.Subscribe(filter); err != nil {
			return nil, fmt.Errorf("filter %q: %w", filter, err)
		}
	}
	return c, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Next reads and annotates one packet. It returns io.EOF when r ends on a packet boundary.
func (c *Capture) Next(r io.Reader) (*Record, error) {
	cr := &countingReader{r: r}
	pkt, err := packet.Unpack(cr)
	if err != nil {
		if err == io.EOF && cr.n == 0 {
			return nil, io.EOF
		}
		// 读取器自身的错误, 例如 websocket 关闭, 不是解码失败
		if packet.IsMalformed(err) {
			stat.decodeFailed(RESERVED)
		}
		return nil, fmt.Errorf("offset %d: %w", c.offset, err)
	}
	stat.decoded(pkt.Kind(), int(cr.n))

	rec := &Record{Offset: c.offset, Size: cr.n, Kind: packet.Kind[pkt.Kind()], Packet: pkt}
	c.offset += cr.n
	c.annotate(rec)
	return rec, nil
}

func (c *Capture) annotate(rec *Record) {
	switch pkt := rec.Packet.(type) {
	case *packet.SUBSCRIBE:
		for _, subscription := range pkt.Subscriptions {
			if err := c.subscribed.Subscribe(subscription.TopicFilter); err != nil {
				rec.Note = fmt.Sprintf("%s: %v", subscription.TopicFilter, err)
			}
		}
	case *packet.UNSUBSCRIBE:
		for _, filter := range pkt.TopicFilters {
			c.subscribed.Unsubscribe(filter)
		}
	case *packet.PUBLISH:
		rec.Matches, _ = c.subscribed.Find(pkt.Message.TopicName)
		c.inFight.Publish(pkt)
	case *packet.ACK:
		if err := c.inFight.Ack(pkt); err != nil {
			rec.Note = err.Error()
		}
	}
}

// Pending returns the packet identifiers of QoS 1, 2 PUBLISH packets whose
// acknowledgement flow has not completed.
func (c *Capture) Pending() []uint16 {
	return c.inFight.Pending()
}

// Walk calls fn for every packet in r until r is exhausted, fn fails or ctx is done.
func (c *Capture) Walk(ctx context.Context, r io.Reader, fn func(*Record) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rec, err := c.Next(r)
		if err == io.EOF {
			if pending := c.Pending(); len(pending) != 0 {
				log.Debugf("capture ended with %d packets in flight: %v", len(pending), pending)
			}
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
