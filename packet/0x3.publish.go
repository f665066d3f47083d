package packet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang-io/mqttpacket/topic"
)

// PUBLISH 发布消息报文
//
// MQTT v3.1.1: 参考章节 3.3 PUBLISH - Publish message
//
// 报文结构:
// 固定报头: 报文类型0x03，标志位包含DUP、QoS、RETAIN
// 可变报头: 主题名、报文标识符(QoS>0时)
// 载荷: 应用消息内容，没有长度前缀，长度由剩余长度推算
//
// 标志位规则:
// - DUP: 只有QoS > 0的报文才能设置，表示重复发送
// - QoS: 由 Delivery 决定, Pack 时写入固定报头
// - RETAIN: 表示消息是否应该被服务端保留
type PUBLISH struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	// Delivery 服务质量及报文标识符. nil 等同于 AtMostOnce{}.
	// QoS 设置为 0 的 Publish 报文不能包含报文标识符 [MQTT-2.3.1-5]，
	// 用类型区分 QoS 使得"有报文标识符"与"QoS>0"不可能不一致.
	Delivery Delivery `json:"Delivery,omitempty"`

	Message *Message `json:"message,omitempty"`
}

// Delivery is the QoS level of a PUBLISH together with the packet identifier
// that only QoS 1 and QoS 2 carry. Implemented by AtMostOnce, AtLeastOnce and ExactlyOnce.
type Delivery interface {
	Level() uint8
	packetID() (uint16, bool)
}

// AtMostOnce QoS 0, 最多分发一次, 没有报文标识符
type AtMostOnce struct{}

// AtLeastOnce QoS 1, 至少分发一次
type AtLeastOnce struct{ PacketID uint16 }

// ExactlyOnce QoS 2, 只分发一次
type ExactlyOnce struct{ PacketID uint16 }

func (AtMostOnce) Level() uint8 { return 0 }

func (AtMostOnce) packetID() (uint16, bool) { return 0, false }

func (AtLeastOnce) Level() uint8 { return 1 }

func (d AtLeastOnce) packetID() (uint16, bool) { return d.PacketID, true }

func (ExactlyOnce) Level() uint8 { return 2 }

func (d ExactlyOnce) packetID() (uint16, bool) { return d.PacketID, true }

// NewDelivery builds the Delivery for qos. packetID is ignored for QoS 0.
func NewDelivery(qos uint8, packetID uint16) (Delivery, error) {
	switch qos {
	case 0:
		return AtMostOnce{}, nil
	case 1:
		return AtLeastOnce{PacketID: packetID}, nil
	case 2:
		return ExactlyOnce{PacketID: packetID}, nil
	}
	return nil, fmt.Errorf("%w: qos=%d", ErrProtocolViolationQosOutOfRange, qos)
}

func (pkt *PUBLISH) Kind() byte {
	return 0x3
}

func (pkt *PUBLISH) delivery() Delivery {
	if pkt.Delivery == nil {
		return AtMostOnce{}
	}
	return pkt.Delivery
}

// PacketID returns the packet identifier and whether the packet carries one.
func (pkt *PUBLISH) PacketID() (uint16, bool) {
	return pkt.delivery().packetID()
}

// Validate checks the fields of a PUBLISH before encoding.
func (pkt *PUBLISH) Validate() error {
	if pkt.Message == nil {
		return ErrProtocolViolationNoTopic
	}
	if err := topic.ValidateName(pkt.Message.TopicName); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolationInvalidTopic, err)
	}
	d := pkt.delivery()
	switch d.(type) {
	case AtMostOnce, AtLeastOnce, ExactlyOnce:
	default:
		return fmt.Errorf("%w: %T", ErrProtocolViolationUnexpectedDelivery, d)
	}
	if id, ok := d.packetID(); ok && id == 0 {
		return ErrProtocolViolationNoPacketID
	}
	if pkt.FixedHeader != nil && (pkt.FixedHeader.Dup > 1 || pkt.FixedHeader.Retain > 1) {
		return fmt.Errorf("%w: dup=%d, retain=%d", ErrProtocolViolationFlags, pkt.FixedHeader.Dup, pkt.FixedHeader.Retain)
	}
	// 对于 QoS 0 的消息，DUP 标志必须设置为 0 [MQTT-3.3.1-2]
	if pkt.FixedHeader != nil && pkt.FixedHeader.Dup != 0 && d.Level() == 0 {
		return ErrProtocolViolationDupNoQos
	}
	return nil
}

func (pkt *PUBLISH) Pack(w io.Writer) error {
	if err := pkt.Validate(); err != nil {
		return err
	}
	pkt.FixedHeader = header(pkt.FixedHeader, 0x3)
	pkt.FixedHeader.QoS = pkt.delivery().Level()

	buf := GetBuffer()
	defer PutBuffer(buf)
	if err := writeUTF8(buf, pkt.Message.TopicName); err != nil {
		return fmt.Errorf("topic: %w", err)
	}
	// QoS 设置为 0 的 Publish 报文不能包含报文标识符 [MQTT-2.3.1-5]。
	if id, ok := pkt.delivery().packetID(); ok {
		buf.Write(i2b(id))
	}
	buf.Write(pkt.Message.Content)
	return writePacket(w, pkt.FixedHeader, buf)
}

func (pkt *PUBLISH) Unpack(buf *bytes.Buffer) error {
	// QoS 在固定报头中, 必须先由调用方解析
	if pkt.FixedHeader == nil {
		return fmt.Errorf("%w: missing fixed header", ErrMalformedFlags)
	}
	if pkt.Message == nil {
		pkt.Message = &Message{}
	}
	var err error
	if pkt.Message.TopicName, err = decodeUTF8[string](buf); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTopic, err)
	}
	if pkt.Message.TopicName == "" {
		return fmt.Errorf("pkt.RemainingLength=%v, err=%w", pkt.RemainingLength, ErrMalformedTopic)
	}

	// 报文标识符是否存在由固定报头中的 QoS 决定
	var id uint16
	if pkt.QoS != 0 {
		if id, err = readUint16(buf); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedPacketID, err)
		}
	}
	if pkt.Delivery, err = NewDelivery(pkt.QoS, id); err != nil {
		return ErrMalformedQos
	}

	// 载荷可以包含任意字节，包括 0x00，长度可以为 0
	pkt.Message.Content = make([]byte, buf.Len())
	copy(pkt.Message.Content, buf.Next(buf.Len()))
	return nil
}

// Message 发布消息内容
// 参考章节: 3.3.3 PUBLISH Payload
// 包含主题名和消息内容
type Message struct {
	// TopicName 主题名
	// 参考章节: 3.3.2.1 Topic Name
	// 要求:
	// - UTF-8编码字符串
	// - 不能为空
	// - 不能包含通配符 [MQTT-3.3.2-2]
	TopicName string

	// Content 消息内容
	// 参考章节: 3.3.3 PUBLISH Payload
	// 注意: 包含零长度有效载荷的Publish报文是合法的
	Content []byte
}

func (m *Message) String() string {
	return fmt.Sprintf("%s # %s", m.TopicName, m.Content)
}
