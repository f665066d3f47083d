package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	VERSION310 byte = 0x3
	VERSION311 byte = 0x4

	max1 = 0x7F      // 127
	max2 = 0x3FFF    // 16383
	max3 = 0x1FFFFF  // 2097151
	max4 = 0xFFFFFFF // 268435455

	// MaxRemainingLength 剩余长度字段能表示的最大值
	MaxRemainingLength = max4
	// MaxStringLength UTF-8 字符串和二进制数据的最大长度
	MaxStringLength = 0xFFFF

	maxLengthBytes = 4

	KB = 1024 * 1
	MB = 1024 * KB
)

// Kind Control packet types. Position: byte 1, bits 7-4
var Kind = map[byte]string{
	0x0: "[0x0]RESERVED",    // Forbidden 					Reserved
	0x1: "[0x1]CONNECT",     // 客户端到服务端 客户端请求连接服务端
	0x2: "[0x2]CONNACK",     // 服务端到客户端 连接报文确认
	0x3: "[0x3]PUBLISH",     // Client to Server or Server to Client Publish message
	0x4: "[0x4]PUBACK",      // Client to Server or Server to Client Publish acknowledgment
	0x5: "[0x5]PUBREC",      // Client to Server or Server to Client Publish received (assured delivery part 1)
	0x6: "[0x6]PUBREL",      // Client to Server or Server to Client Publish release (assured delivery part 2)
	0x7: "[0x7]PUBCOMP",     // Client to Server or Server to Client Publish complete (assured delivery part 3)
	0x8: "[0x8]SUBSCRIBE",   // Client to Server Client subscribe request
	0x9: "[0x9]SUBACK",      // Server to Client Subscribe acknowledgment
	0xA: "[0xA]UNSUBSCRIBE", // Client to Server Unsubscribe request
	0xB: "[0xB]UNSUBACK",    // Server to Client Unsubscribe acknowledgment
	0xC: "[0xC]PINGREQ",     // Client to Server PING request
	0xD: "[0xD]PINGRESP",    // Server to Client PING response
	0xE: "[0xE]DISCONNECT",  // Client to Server Client is disconnecting
	0xF: "[0xF]RESERVED",    // MQTT 3.1.1: Forbidden Reserved
}

// reservedFlags 每种报文固定报头低4位的协议规定值, 参考章节 2.2.2 Flags.
// PUBLISH 的标志位由 DUP/QoS/RETAIN 决定, 不在此表中.
var reservedFlags = map[byte]byte{
	0x1: 0x0, 0x2: 0x0,
	0x4: 0x0, 0x5: 0x0, 0x6: 0x2, 0x7: 0x0,
	0x8: 0x2, 0x9: 0x0, 0xA: 0x2, 0xB: 0x0,
	0xC: 0x0, 0xD: 0x0, 0xE: 0x0,
}

// encodeLength encodes v as a minimal variable byte integer.
func encodeLength[T ~uint32 | ~int | ~int64](v T) ([]byte, error) {
	var result []byte
	switch {
	case v < 0:
		return nil, ErrMalformedVariableByteInteger
	case v <= max1:
		result = make([]byte, 1)
	case v <= max2:
		result = make([]byte, 2)
	case v <= max3:
		result = make([]byte, 3)
	case v <= max4:
		result = make([]byte, 4)
	default:
		return nil, ErrPacketTooLarge
	}
	for i := range result {
		enc := byte(v % 128)
		v = v / 128
		if i < len(result)-1 { // if there are more data to encode, set the top bit of this byte
			enc = enc | 128
		}
		result[i] = enc
	}
	return result, nil
}

// lengthSize returns how many bytes encodeLength would produce for v.
func lengthSize(v int) int {
	switch {
	case v <= max1:
		return 1
	case v <= max2:
		return 2
	case v <= max3:
		return 3
	default:
		return 4
	}
}

// decodeLength reads a variable byte integer from r one byte at a time.
func decodeLength(r io.Reader) (uint32, error) {
	vbi, b := uint32(0), make([]byte, 1)
	for i := 0; i < maxLengthBytes; i++ {
		if _, err := io.ReadFull(r, b); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, fmt.Errorf("%w: %w", ErrMalformedOffsetBytesOutOfRange, io.ErrUnexpectedEOF)
			}
			return 0, err
		}
		vbi |= uint32(b[0]&127) << (7 * i)
		if b[0]&128 == 0 {
			return vbi, nil
		}
	}
	return 0, ErrMalformedVariableByteInteger
}

// EncodeLength encodes a remaining length value, 0..268435455, using 1-4 bytes.
func EncodeLength(n uint32) ([]byte, error) {
	return encodeLength(n)
}

// DecodeLength decodes the variable byte integer starting at buf[offset].
// It returns the value and the number of bytes consumed.
func DecodeLength(buf []byte, offset int) (uint32, int, error) {
	if offset < 0 || offset > len(buf) {
		return 0, 0, ErrMalformedOffsetBytesOutOfRange
	}
	vbi := uint32(0)
	for i := 0; i < maxLengthBytes; i++ {
		if offset+i >= len(buf) {
			return 0, i, ErrMalformedOffsetBytesOutOfRange
		}
		b := buf[offset+i]
		vbi |= uint32(b&127) << (7 * i)
		if b&128 == 0 {
			return vbi, i + 1, nil
		}
	}
	return 0, maxLengthBytes, ErrMalformedVariableByteInteger
}

func i2b(i uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, i)
	return b
}

// EncodeUint16 encodes n as a big-endian two byte integer.
func EncodeUint16(n uint16) []byte {
	return i2b(n)
}

// DecodeUint16 decodes the big-endian two byte integer at buf[offset].
func DecodeUint16(buf []byte, offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(buf) {
		return 0, ErrMalformedOffsetUintOutOfRange
	}
	return binary.BigEndian.Uint16(buf[offset:]), nil
}

// encodeUTF8 prefixes v with its length.
func encodeUTF8[T []byte | string](v T) ([]byte, error) {
	uLength := len(v)
	if uLength > MaxStringLength {
		return nil, ErrFieldTooLarge
	}
	b := make([]byte, 2, uLength+2)
	binary.BigEndian.PutUint16(b, uint16(uLength))
	b = append(b, v...)
	return b, nil
}

func writeUTF8[T []byte | string](buf *bytes.Buffer, v T) error {
	b, err := encodeUTF8(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// EncodeString encodes s as a length-prefixed UTF-8 string.
func EncodeString(s string) ([]byte, error) {
	return encodeUTF8(s)
}

// EncodeBytes encodes b as length-prefixed binary data.
func EncodeBytes(b []byte) ([]byte, error) {
	return encodeUTF8(b)
}

// DecodeString decodes the length-prefixed string at buf[offset].
// It returns the string and the number of bytes consumed, length prefix included.
func DecodeString(buf []byte, offset int) (string, int, error) {
	n, err := DecodeUint16(buf, offset)
	if err != nil {
		return "", 0, err
	}
	end := offset + 2 + int(n)
	if end > len(buf) {
		return "", 0, ErrMalformedOffsetBytesOutOfRange
	}
	return string(buf[offset+2 : end]), 2 + int(n), nil
}

func readByte(b *bytes.Buffer) (byte, error) {
	if b.Len() < 1 {
		return 0, ErrMalformedOffsetByteOutOfRange
	}
	return b.Next(1)[0], nil
}

func readUint16(b *bytes.Buffer) (uint16, error) {
	if b.Len() < 2 {
		return 0, ErrMalformedOffsetUintOutOfRange
	}
	return binary.BigEndian.Uint16(b.Next(2)), nil
}

// decodeUTF8 reads a length-prefixed field. The result never aliases b.
func decodeUTF8[T []byte | string](b *bytes.Buffer) (T, error) {
	var zero T
	uLength, err := readUint16(b)
	if err != nil {
		return zero, err
	}
	if b.Len() < int(uLength) {
		return zero, ErrMalformedOffsetBytesOutOfRange
	}
	v := make([]byte, uLength)
	copy(v, b.Next(int(uLength)))
	return T(v), nil
}

func b2i(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
