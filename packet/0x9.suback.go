package packet

import (
	"bytes"
	"fmt"
	"io"
)

// SUBACK 订阅确认报文
//
// MQTT v3.1.1: 参考章节 3.9 SUBACK - Subscribe acknowledgement
//
// 报文结构:
// 固定报头: 报文类型0x09，标志位必须为0
// 可变报头: 报文标识符
// 载荷: 返回码列表, 每个返回码对应 SUBSCRIBE 中的一个主题过滤器, 顺序相同.
// 返回码的个数没有显式编码, 由剩余长度决定.
//
// 返回码:
// - 0x00: 最大QoS 0
// - 0x01: 最大QoS 1
// - 0x02: 最大QoS 2
// - 0x80: 订阅失败
type SUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	// ReturnCodes 授予的 QoS 列表
	ReturnCodes []byte `json:"ReturnCodes,omitempty"`
}

func (pkt *SUBACK) Kind() byte {
	return 0x9
}

func (pkt *SUBACK) String() string {
	return fmt.Sprintf("[0x9]SUBACK: PacketID=%d, ReturnCodes=%v", pkt.PacketID, pkt.ReturnCodes)
}

// Granted reports whether every subscription in the request was accepted.
func (pkt *SUBACK) Granted() bool {
	for _, code := range pkt.ReturnCodes {
		if code == ErrSubscriptionFailure.Code {
			return false
		}
	}
	return len(pkt.ReturnCodes) != 0
}

func (pkt *SUBACK) Pack(w io.Writer) error {
	if len(pkt.ReturnCodes) == 0 {
		return ErrProtocolViolationNoReturnCodes
	}
	// 0x00, 0x01, 0x02 和 0x80 之外的 SUBACK 返回码是保留的，不能使用 [MQTT-3.9.3-2]
	for i, code := range pkt.ReturnCodes {
		if code > 0x02 && code != ErrSubscriptionFailure.Code {
			return fmt.Errorf("%w: return code[%d]=0x%02x", ErrProtocolViolationQosOutOfRange, i, code)
		}
	}
	pkt.FixedHeader = header(pkt.FixedHeader, 0x9)

	var buf bytes.Buffer
	buf.Write(i2b(pkt.PacketID))
	buf.Write(pkt.ReturnCodes)
	return writePacket(w, pkt.FixedHeader, &buf)
}

func (pkt *SUBACK) Unpack(buf *bytes.Buffer) error {
	var err error
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPacketID, err)
	}
	// 每个剩余字节都是一个返回码, 原样保留, 包括保留值
	if buf.Len() == 0 {
		return fmt.Errorf("%w: no return code", ErrMalformedReasonCode)
	}
	pkt.ReturnCodes = make([]byte, buf.Len())
	copy(pkt.ReturnCodes, buf.Next(buf.Len()))
	return nil
}
