package packet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang-io/mqttpacket/topic"
)

// SUBSCRIBE 订阅请求报文
//
// MQTT v3.1.1: 参考章节 3.8 SUBSCRIBE - Subscribe to topics
//
// 报文结构:
// 固定报头: 报文类型0x08，标志位必须为DUP=0, QoS=1, RETAIN=0
// 可变报头: 报文标识符
// 载荷: 订阅列表，每个订阅包含主题过滤器和服务质量要求
type SUBSCRIBE struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	// PacketID 报文标识符
	// 参考章节: 2.3.1 Packet Identifier
	// 要求: 必须包含，范围1-65535
	PacketID uint16 `json:"PacketID,omitempty"`

	// Subscriptions 订阅列表
	// 参考章节: 3.8.3 SUBSCRIBE Payload
	// 要求: 至少包含一个订阅 [MQTT-3.8.3-3]
	Subscriptions []Subscription `json:"Subscription,omitempty"`
}

func (pkt *SUBSCRIBE) Kind() byte {
	return 0x8
}

// Validate checks the packet identifier and every subscription.
func (pkt *SUBSCRIBE) Validate() error {
	if pkt.PacketID == 0 {
		return ErrProtocolViolationNoPacketID
	}
	if len(pkt.Subscriptions) == 0 {
		return ErrProtocolViolationNoFilters
	}
	for _, subscription := range pkt.Subscriptions {
		if err := topic.ValidateFilter(subscription.TopicFilter); err != nil {
			return fmt.Errorf("%w: %w", ErrProtocolViolationInvalidTopic, err)
		}
		if subscription.MaximumQoS > 2 {
			return fmt.Errorf("%w: %s", ErrProtocolViolationQosOutOfRange, subscription.String())
		}
	}
	return nil
}

func (pkt *SUBSCRIBE) Pack(w io.Writer) error {
	if err := pkt.Validate(); err != nil {
		return err
	}
	pkt.FixedHeader = header(pkt.FixedHeader, 0x8)

	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	for _, subscription := range pkt.Subscriptions {
		if err := writeUTF8(buf, subscription.TopicFilter); err != nil {
			return fmt.Errorf("topic filter: %w", err)
		}
		buf.WriteByte(subscription.MaximumQoS)
	}
	return writePacket(w, pkt.FixedHeader, buf)
}

func (pkt *SUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	var err error
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPacketID, err)
	}
	for buf.Len() != 0 {
		subscription := Subscription{}
		if subscription.TopicFilter, err = decodeUTF8[string](buf); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedTopic, err)
		}
		options, err := readByte(buf)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedQos, err)
		}
		// bits 7-2 为保留位, 宽松处理
		if subscription.MaximumQoS = options & 0b00000011; subscription.MaximumQoS > 0x02 {
			return ErrMalformedQos
		}
		pkt.Subscriptions = append(pkt.Subscriptions, subscription)
	}
	if len(pkt.Subscriptions) == 0 {
		return fmt.Errorf("%w: no topic filter", ErrMalformedTopic)
	}
	return nil
}

// Subscription 订阅, 主题过滤器和服务质量要求
// 参考章节: 3.8.3 SUBSCRIBE Payload
type Subscription struct {
	// TopicFilter 主题过滤器, 可以包含通配符 + 和 #
	TopicFilter string

	// MaximumQoS 服务质量要求, 服务端授予的 QoS 不会高于此值
	MaximumQoS uint8
}

func (s *Subscription) String() string {
	return fmt.Sprintf("%s@%d", s.TopicFilter, s.MaximumQoS)
}
