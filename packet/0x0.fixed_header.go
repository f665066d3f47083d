package packet

import (
	"fmt"
	"io"
)

// FixedHeader contains the values of the fixed header portion of the MQTT pkt.
// Each MQTT Control Packet contains a fixed header.
// Bit 		| 7 | 6 |	5	4	3	2	1	0
// byte1    | MQTT Control Packet type | Flags specific to each MQTT Control Packet type|
// byte2...	|    Remaining Length
type FixedHeader struct {
	// Kind MQTT Control Packet type
	// Position: byte 1, bits 7-4.
	Kind byte `json:"Kind,omitempty"` // the type of the packet (PUBLISH, SUBSCRIBE, etc.) from bits 7 - 4 (byte 1).

	// Flags Position: byte 1, bits 3-0.

	// Dup position: byte 1, bytes 3.
	Dup uint8 `json:"Dup,omitempty"` // indicates if the packet was already sent at an earlier time.

	// QoS position: byte1, bytes 2-1.
	QoS uint8 `json:"QoS,omitempty"` // indicates the quality of service expected.

	// Retain position: byte1, bytes 0.
	Retain uint8 `json:"Retain,omitempty"` // whether the message should be retained.

	// RemainingLength position: starts at byte 2.
	RemainingLength uint32 `json:"RemainingLength,omitempty"` // the number of remaining bytes in the payload.
}

func (pkt *FixedHeader) String() string {
	return fmt.Sprintf("%s: Len=%d", Kind[pkt.Kind], pkt.RemainingLength)
}

// Flags returns the lower nibble of the first header byte.
func (pkt *FixedHeader) Flags() byte {
	return pkt.Dup<<3 | pkt.QoS<<1 | pkt.Retain
}

func (pkt *FixedHeader) setFlags(flags byte) {
	pkt.Dup = flags & 0b00001000 >> 3
	pkt.QoS = flags & 0b00000110 >> 1
	pkt.Retain = flags & 0b00000001
}

// checkFlags rejects DUP, QoS or RETAIN values that do not fit their bits.
func (pkt *FixedHeader) checkFlags() error {
	if pkt.Dup > 1 || pkt.QoS > 3 || pkt.Retain > 1 {
		return fmt.Errorf("%w: dup=%d, qos=%d, retain=%d", ErrProtocolViolationFlags, pkt.Dup, pkt.QoS, pkt.Retain)
	}
	return nil
}

func (pkt *FixedHeader) Pack(w io.Writer) error {
	if err := pkt.checkFlags(); err != nil {
		return err
	}
	b, err := EncodeFixedHeader(pkt.Kind, pkt.Flags(), pkt.RemainingLength)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Unpack reads the fixed header from a stream. A clean io.EOF before the first
// byte is returned as is, so callers can tell end-of-stream from truncation.
func (pkt *FixedHeader) Unpack(r io.Reader) error {
	b := []uint8{0x00}

	if _, err := io.ReadFull(r, b); err != nil {
		return err
	}
	if err := pkt.unpackFirst(b[0]); err != nil {
		return err
	}

	var err error
	pkt.RemainingLength, err = decodeLength(r)
	return err
}

// unpackFirst splits the first header byte into type and flags.
// 本编解码器对不解释的标志位保持宽松, 只拒绝 QoS=3 的 PUBLISH: 它使可变报头的布局无法确定.
func (pkt *FixedHeader) unpackFirst(b byte) error {
	pkt.Kind = b >> 4
	pkt.setFlags(b & 0x0F)
	if pkt.Kind == 0x3 && pkt.QoS > 2 {
		return ErrMalformedQos
	}
	return nil
}

// EncodeFixedHeader packs kind into the upper nibble and flags into the lower
// nibble of the first byte, followed by the remaining length.
func EncodeFixedHeader(kind, flags byte, remainingLength uint32) ([]byte, error) {
	if kind > 0xF || flags > 0xF {
		return nil, ErrMalformedFlags
	}
	enc, err := encodeLength(remainingLength)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 1, 1+len(enc))
	b[0] = kind<<4 | flags
	return append(b, enc...), nil
}

// DecodeFixedHeader decodes the fixed header starting at buf[offset] and
// returns it with the number of bytes consumed.
func DecodeFixedHeader(buf []byte, offset int) (*FixedHeader, int, error) {
	if offset < 0 || len(buf)-offset < 2 {
		return nil, 0, ErrMalformedOffsetBytesOutOfRange
	}
	pkt := &FixedHeader{}
	if err := pkt.unpackFirst(buf[offset]); err != nil {
		return nil, 0, err
	}
	rl, n, err := DecodeLength(buf, offset+1)
	if err != nil {
		return nil, 0, err
	}
	pkt.RemainingLength = rl
	return pkt, 1 + n, nil
}
