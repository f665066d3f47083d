package packet

import (
	"bytes"
	"fmt"
	"io"
)

// CONNACK 连接确认报文
//
// MQTT v3.1.1: 参考章节 3.2 CONNACK - Acknowledge connection request
//
// 报文结构:
// 固定报头: 报文类型0x02，标志位必须为0，剩余长度必须为2
// 可变报头: 连接确认标志(bit 0为SessionPresent，bits 7-1保留)、连接返回码
// 载荷: 无
type CONNACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	// SessionPresent 当前会话标志, 参考章节 3.2.2.2 Session Present
	SessionPresent bool `json:"SessionPresent,omitempty"`

	// ReturnCode 连接返回码, 参考章节 3.2.2.3 Connect Return code
	// 0 表示连接已接受, 非0 表示连接被拒绝
	ReturnCode uint8 `json:"ReturnCode,omitempty"`
}

func (pkt *CONNACK) Kind() byte {
	return 0x2
}

func (pkt *CONNACK) String() string {
	return fmt.Sprintf("[0x2]CONNACK: SessionPresent=%v, ReturnCode=%d", pkt.SessionPresent, pkt.ReturnCode)
}

// Accepted reports whether the server accepted the connection.
func (pkt *CONNACK) Accepted() bool {
	return pkt.ReturnCode == Accepted.Code
}

// Err returns nil for an accepted connection, otherwise the ReasonCode of the rejection.
// A rejected CONNACK is still a successfully decoded packet.
func (pkt *CONNACK) Err() error {
	if pkt.Accepted() {
		return nil
	}
	return ConnackReturnCode(pkt.ReturnCode)
}

func (pkt *CONNACK) Pack(w io.Writer) error {
	// 如果服务端发送了一个包含非零返回码的 CONNACK 报文，那么它必须将当前会话标志设置为 0 [MQTT-3.2.2-4]
	if pkt.ReturnCode != 0 && pkt.SessionPresent {
		return fmt.Errorf("%w: session present with return code %d", ErrProtocolViolation, pkt.ReturnCode)
	}
	pkt.FixedHeader = header(pkt.FixedHeader, 0x2)

	var buf bytes.Buffer
	buf.WriteByte(b2i(pkt.SessionPresent))
	buf.WriteByte(pkt.ReturnCode)
	return writePacket(w, pkt.FixedHeader, &buf)
}

func (pkt *CONNACK) Unpack(buf *bytes.Buffer) error {
	if buf.Len() != 2 {
		return fmt.Errorf("%w: connack len=%d", ErrMalformedRemainingLength, buf.Len())
	}
	flags, _ := readByte(buf)
	// bits 7-1 为保留位，宽松处理，不校验
	pkt.SessionPresent = flags&0x01 == 0x01
	pkt.ReturnCode, _ = readByte(buf)
	return nil
}
