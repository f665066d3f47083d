package packet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang-io/mqttpacket/topic"
)

// UNSUBSCRIBE 取消订阅报文
//
// MQTT v3.1.1: 参考章节 3.10 UNSUBSCRIBE - Unsubscribe from topics
//
// 报文结构:
// 固定报头: 报文类型0x0A，标志位必须为DUP=0, QoS=1, RETAIN=0
// 可变报头: 报文标识符
// 载荷: 主题过滤器列表, 至少一个 [MQTT-3.10.3-2]
type UNSUBSCRIBE struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	TopicFilters []string `json:"TopicFilters,omitempty"`
}

func (pkt *UNSUBSCRIBE) Kind() byte {
	return 0xA
}

func (pkt *UNSUBSCRIBE) Validate() error {
	if pkt.PacketID == 0 {
		return ErrProtocolViolationNoPacketID
	}
	if len(pkt.TopicFilters) == 0 {
		return ErrProtocolViolationNoFilters
	}
	for _, filter := range pkt.TopicFilters {
		if err := topic.ValidateFilter(filter); err != nil {
			return fmt.Errorf("%w: %w", ErrProtocolViolationInvalidTopic, err)
		}
	}
	return nil
}

func (pkt *UNSUBSCRIBE) Pack(w io.Writer) error {
	if err := pkt.Validate(); err != nil {
		return err
	}
	pkt.FixedHeader = header(pkt.FixedHeader, 0xA)

	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	for _, filter := range pkt.TopicFilters {
		if err := writeUTF8(buf, filter); err != nil {
			return fmt.Errorf("topic filter: %w", err)
		}
	}
	return writePacket(w, pkt.FixedHeader, buf)
}

func (pkt *UNSUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	var err error
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPacketID, err)
	}
	for buf.Len() != 0 {
		filter, err := decodeUTF8[string](buf)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedTopic, err)
		}
		pkt.TopicFilters = append(pkt.TopicFilters, filter)
	}
	if len(pkt.TopicFilters) == 0 {
		return fmt.Errorf("%w: no topic filter", ErrMalformedTopic)
	}
	return nil
}
