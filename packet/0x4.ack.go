package packet

import (
	"bytes"
	"fmt"
	"io"
)

// ACK 发布确认系列报文: PUBACK, PUBREC, PUBREL, PUBCOMP
//
// MQTT v3.1.1:
// - 3.4 PUBACK - Publish acknowledgement (0x4, QoS 1)
// - 3.5 PUBREC - Publish received (0x5, QoS 2 第一步)
// - 3.6 PUBREL - Publish release (0x6, QoS 2 第二步)
// - 3.7 PUBCOMP - Publish complete (0x7, QoS 2 第三步)
//
// 报文结构:
// 固定报头: 报文类型由 Kind 决定; PUBREL 的标志位为 0010, 其余为 0000
// 可变报头: 报文标识符
// 载荷: 无
//
// DUP 标志位按原样携带, 编码时写入 bit 3, 解码时从 bit 3 读出.
type ACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	// PacketID 报文标识符, 与被确认报文的标识符相同
	PacketID uint16 `json:"PacketID,omitempty"`
}

// NewAck builds an acknowledgement of the given kind (0x4-0x7).
func NewAck(kind byte, dup bool, packetID uint16) (*ACK, error) {
	if !isAck(kind) {
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolationInvalidAckKind, Kind[kind&0x0F])
	}
	return &ACK{FixedHeader: &FixedHeader{Kind: kind, Dup: b2i(dup)}, PacketID: packetID}, nil
}

func isAck(kind byte) bool {
	return kind >= 0x4 && kind <= 0x7
}

func (pkt *ACK) Kind() byte {
	if pkt.FixedHeader == nil {
		return 0x4
	}
	return pkt.FixedHeader.Kind
}

func (pkt *ACK) String() string {
	return fmt.Sprintf("%s: PacketID=%d, Dup=%v", Kind[pkt.Kind()], pkt.PacketID, pkt.IsDup())
}

// IsDup reports whether the DUP flag is set.
func (pkt *ACK) IsDup() bool {
	return pkt.FixedHeader != nil && pkt.FixedHeader.Dup == 1
}

func (pkt *ACK) Pack(w io.Writer) error {
	kind := pkt.Kind()
	if !isAck(kind) {
		return fmt.Errorf("%w: %s", ErrProtocolViolationInvalidAckKind, Kind[kind])
	}
	if pkt.FixedHeader != nil && pkt.FixedHeader.Dup > 1 {
		return fmt.Errorf("%w: dup=%d", ErrProtocolViolationFlags, pkt.FixedHeader.Dup)
	}
	dup := b2i(pkt.IsDup())
	pkt.FixedHeader = header(pkt.FixedHeader, kind)
	pkt.FixedHeader.Dup = dup

	var buf bytes.Buffer
	buf.Write(i2b(pkt.PacketID))
	return writePacket(w, pkt.FixedHeader, &buf)
}

func (pkt *ACK) Unpack(buf *bytes.Buffer) error {
	var err error
	if pkt.PacketID, err = readUint16(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPacketID, err)
	}
	return nil
}
