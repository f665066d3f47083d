package packet

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// TestFixedHeader_Kind 测试固定报头的报文类型字段
// 参考MQTT v3.1.1章节 2.2.1 MQTT Control Packet type
func TestFixedHeader_Kind(t *testing.T) {
	testCases := []struct {
		name     string
		kind     byte
		expected string
	}{
		{"CONNECT", 0x01, "[0x1]CONNECT: Len=0"},
		{"PUBLISH", 0x03, "[0x3]PUBLISH: Len=0"},
		{"PUBREL", 0x06, "[0x6]PUBREL: Len=0"},
		{"DISCONNECT", 0x0E, "[0xE]DISCONNECT: Len=0"},
		{"Reserved", 0x00, "[0x0]RESERVED: Len=0"},
		{"Forbidden", 0x0F, "[0xF]RESERVED: Len=0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			header := &FixedHeader{Kind: tc.kind}
			if result := header.String(); result != tc.expected {
				t.Errorf("String() = %s, want %s", result, tc.expected)
			}
		})
	}
}

// TestFixedHeader_Flags 测试固定报头的标志位字段
// 参考MQTT v3.1.1章节 2.2.2 Flags
func TestFixedHeader_Flags(t *testing.T) {
	testCases := []struct {
		name     string
		dup      uint8
		qos      uint8
		retain   uint8
		expected byte
	}{
		{"AllZero", 0, 0, 0, 0x00},
		{"DupOnly", 1, 0, 0, 0x08},
		{"QoS1", 0, 1, 0, 0x02},
		{"QoS2", 0, 2, 0, 0x04},
		{"RetainOnly", 0, 0, 1, 0x01},
		{"DupQoS1", 1, 1, 0, 0x0A},
		{"QoS1Retain", 0, 1, 1, 0x03},
		{"AllSet", 1, 2, 1, 0x0D},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			header := &FixedHeader{Kind: 0x3, Dup: tc.dup, QoS: tc.qos, Retain: tc.retain}
			if flags := header.Flags(); flags != tc.expected {
				t.Errorf("Flags() = 0x%02x, want 0x%02x", flags, tc.expected)
			}

			decoded := &FixedHeader{}
			decoded.setFlags(tc.expected)
			if decoded.Dup != tc.dup || decoded.QoS != tc.qos || decoded.Retain != tc.retain {
				t.Errorf("setFlags(0x%02x) = %+v", tc.expected, decoded)
			}
		})
	}
}

// TestEncodeFixedHeader 测试固定报头的编码
// 类型占高4位, 标志位占低4位, 后跟剩余长度
func TestEncodeFixedHeader(t *testing.T) {
	testCases := []struct {
		name            string
		kind            byte
		flags           byte
		remainingLength uint32
		expected        []byte
	}{
		{"PINGREQ", 0xC, 0x0, 0, []byte{0xC0, 0x00}},
		{"PUBREL", 0x6, 0x2, 2, []byte{0x62, 0x02}},
		{"SUBSCRIBE", 0x8, 0x2, 200, []byte{0x82, 0xC8, 0x01}},
		{"PUBLISH", 0x3, 0xB, 321, []byte{0x3B, 0xC1, 0x02}},
		{"MaxLength", 0x3, 0x0, MaxRemainingLength, []byte{0x30, 0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := EncodeFixedHeader(tc.kind, tc.flags, tc.remainingLength)
			if err != nil {
				t.Fatalf("EncodeFixedHeader() error = %v", err)
			}
			if !bytes.Equal(b, tc.expected) {
				t.Errorf("EncodeFixedHeader() = %x, want %x", b, tc.expected)
			}

			header, n, err := DecodeFixedHeader(b, 0)
			if err != nil {
				t.Fatalf("DecodeFixedHeader() error = %v", err)
			}
			if n != len(b) {
				t.Errorf("DecodeFixedHeader() consumed %d bytes, want %d", n, len(b))
			}
			if header.Kind != tc.kind || header.Flags() != tc.flags || header.RemainingLength != tc.remainingLength {
				t.Errorf("DecodeFixedHeader() = %+v", header)
			}
		})
	}
}

func TestEncodeFixedHeaderErrors(t *testing.T) {
	if _, err := EncodeFixedHeader(0x10, 0, 0); !errors.Is(err, ErrMalformedFlags) {
		t.Errorf("kind 0x10 error = %v, want ErrMalformedFlags", err)
	}
	if _, err := EncodeFixedHeader(0x3, 0x10, 0); !errors.Is(err, ErrMalformedFlags) {
		t.Errorf("flags 0x10 error = %v, want ErrMalformedFlags", err)
	}
	if _, err := EncodeFixedHeader(0x3, 0, MaxRemainingLength+1); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("oversized remaining length error = %v, want ErrPacketTooLarge", err)
	}
}

// TestDecodeFixedHeader_Lenient 测试解码时对标志位的宽松处理
func TestDecodeFixedHeader_Lenient(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
		err  error
	}{
		{"PUBREL标志位为0", []byte{0x60, 0x02}, nil},
		{"PINGREQ标志位非0", []byte{0xC5, 0x00}, nil},
		{"SUBSCRIBE标志位为0", []byte{0x80, 0x00}, nil},
		{"PUBLISH QoS=3", []byte{0x36, 0x00}, ErrMalformedQos},
		{"只有一个字节", []byte{0x30}, ErrMalformedOffsetBytesOutOfRange},
		{"剩余长度不完整", []byte{0x30, 0x80}, ErrMalformedOffsetBytesOutOfRange},
		{"剩余长度超过4字节", []byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, ErrMalformedVariableByteInteger},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeFixedHeader(tc.buf, 0)
			if !errors.Is(err, tc.err) {
				t.Errorf("DecodeFixedHeader() error = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestDecodeFixedHeader_Offset(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0x32, 0x0A}
	header, n, err := DecodeFixedHeader(buf, 2)
	if err != nil {
		t.Fatalf("DecodeFixedHeader() error = %v", err)
	}
	if n != 2 || header.Kind != 0x3 || header.QoS != 1 || header.RemainingLength != 10 {
		t.Errorf("DecodeFixedHeader() = (%+v, %d)", header, n)
	}
	if _, _, err := DecodeFixedHeader(buf, -1); err == nil {
		t.Error("negative offset should fail")
	}
}

// TestFixedHeader_PackUnpack 测试固定报头在流上的编解码
func TestFixedHeader_PackUnpack(t *testing.T) {
	original := &FixedHeader{Kind: 0x3, Dup: 1, QoS: 2, Retain: 1, RemainingLength: 16384}

	var buf bytes.Buffer
	if err := original.Pack(&buf); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x3D, 0x80, 0x80, 0x01}) {
		t.Errorf("Pack() = %x", buf.Bytes())
	}

	decoded := &FixedHeader{}
	if err := decoded.Unpack(&buf); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if *decoded != *original {
		t.Errorf("Unpack() = %+v, want %+v", decoded, original)
	}
}

func TestFixedHeader_UnpackEOF(t *testing.T) {
	header := &FixedHeader{}
	if err := header.Unpack(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("Unpack(empty) error = %v, want io.EOF", err)
	}
	if err := header.Unpack(bytes.NewReader([]byte{0x30})); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Unpack(truncated) error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestFixedHeader_PackFlagOutOfRange(t *testing.T) {
	testCases := []struct {
		name   string
		header *FixedHeader
	}{
		{"DUP为2", &FixedHeader{Kind: 0x3, Dup: 2}},
		{"QoS为4", &FixedHeader{Kind: 0x3, QoS: 4}},
		{"RETAIN为2", &FixedHeader{Kind: 0x3, Retain: 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tc.header.Pack(&buf); !errors.Is(err, ErrProtocolViolationFlags) || buf.Len() != 0 {
				t.Errorf("Pack() error = %v, wrote %d", err, buf.Len())
			}
		})
	}
}
