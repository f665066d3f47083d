package packet

import (
	"bytes"
	"fmt"
	"io"
)

// UNSUBACK 取消订阅确认报文
//
// MQTT v3.1.1: 参考章节 3.11 UNSUBACK - Unsubscribe acknowledgement
// 固定报头: 报文类型0x0B，标志位必须为0，剩余长度为2
// 可变报头: 报文标识符
type UNSUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`
}

func (pkt *UNSUBACK) Kind() byte {
	return 0xB
}

func (pkt *UNSUBACK) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, 0xB)
	var buf bytes.Buffer
	buf.Write(i2b(pkt.PacketID))
	return writePacket(w, pkt.FixedHeader, &buf)
}

func (pkt *UNSUBACK) Unpack(buf *bytes.Buffer) error {
	var err error
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPacketID, err)
	}
	return nil
}
