package packet

import (
	"bytes"
	"fmt"
	"io"
)

// Packet 定义了MQTT控制报文的通用接口
//
// MQTT v3.1.1 (OASIS Standard, 29 October 2014):
// - 参考章节: 2.1 Structure of an MQTT Control Packet
// - 每个MQTT控制报文都包含固定报头，某些报文还包含可变报头和载荷
type Packet interface {
	// Kind 返回报文的类型标识符
	//
	// MQTT v3.1.1: 参考章节 2.2.1 MQTT Control Packet type
	// - 位置: 固定报头第1字节的bits 7-4
	// - 范围: 0x01-0x0E (CONNECT到DISCONNECT)
	Kind() byte

	// Unpack 从缓冲区解析报文内容，固定报头已经由调用方解析
	//
	// - 解析顺序: 可变报头 -> 载荷(如果有)
	// - 缓冲区恰好包含剩余长度所描述的字节
	Unpack(*bytes.Buffer) error

	// Pack 将报文序列化到写入器
	//
	// - 序列化顺序: 固定报头 -> 可变报头 -> 载荷(如果有)
	// - 剩余长度在写入前根据可变报头和载荷计算
	Pack(io.Writer) error
}

// newPacket 根据固定报头中的报文类型创建对应的报文结构
func newPacket(fixed *FixedHeader) (Packet, error) {
	switch fixed.Kind {
	case 0x1: // CONNECT - 客户端连接请求
		return &CONNECT{FixedHeader: fixed}, nil
	case 0x2: // CONNACK - 连接确认
		return &CONNACK{FixedHeader: fixed}, nil
	case 0x3: // PUBLISH - 发布消息
		return &PUBLISH{FixedHeader: fixed}, nil
	case 0x4, 0x5, 0x6, 0x7: // PUBACK/PUBREC/PUBREL/PUBCOMP - 发布确认系列
		return &ACK{FixedHeader: fixed}, nil
	case 0x8: // SUBSCRIBE - 订阅请求
		return &SUBSCRIBE{FixedHeader: fixed}, nil
	case 0x9: // SUBACK - 订阅确认
		return &SUBACK{FixedHeader: fixed}, nil
	case 0xA: // UNSUBSCRIBE - 取消订阅
		return &UNSUBSCRIBE{FixedHeader: fixed}, nil
	case 0xB: // UNSUBACK - 取消订阅确认
		return &UNSUBACK{FixedHeader: fixed}, nil
	case 0xC: // PINGREQ - 心跳请求
		return &PINGREQ{FixedHeader: fixed}, nil
	case 0xD: // PINGRESP - 心跳响应
		return &PINGRESP{FixedHeader: fixed}, nil
	case 0xE: // DISCONNECT - 断开连接
		return &DISCONNECT{FixedHeader: fixed}, nil
	}
	// 0x0 和 0xF 在 v3.1.1 中为保留值
	return nil, fmt.Errorf("%w: %s", ErrWrongPacketType, Kind[fixed.Kind])
}

// Unpack 从读取器解析一个完整的MQTT控制报文
//
// 解析流程参考章节 2.1 Structure of an MQTT Control Packet:
// 1. 解析固定报头获取报文类型和剩余长度
// 2. 读取剩余长度个字节
// 3. 根据报文类型创建对应的报文结构并解析可变报头和载荷
//
// io.EOF is returned unwrapped when r ends exactly on a packet boundary.
func Unpack(r io.Reader) (Packet, error) {
	fixed := &FixedHeader{}
	if err := fixed.Unpack(r); err != nil {
		return nil, err
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	lr := io.LimitReader(r, int64(fixed.RemainingLength))
	if n, err := buf.ReadFrom(lr); err != nil {
		return nil, err
	} else if n != int64(fixed.RemainingLength) {
		return nil, fmt.Errorf("%w: %s, want=%d, got=%d", ErrMalformedOffsetBytesOutOfRange, fixed, fixed.RemainingLength, n)
	}
	return unpackBody(fixed, buf)
}

// Decode 解析恰好包含一个报文的字节序列
func Decode(b []byte) (Packet, error) {
	return decode(b)
}

// decode 先解析固定报头，类型不在 kinds 中时立即失败.
func decode(b []byte, kinds ...byte) (Packet, error) {
	fixed, n, err := DecodeFixedHeader(b, 0)
	if err != nil {
		return nil, err
	}
	if len(kinds) != 0 && bytes.IndexByte(kinds, fixed.Kind) < 0 {
		return nil, fmt.Errorf("%w: got %s", ErrWrongPacketType, Kind[fixed.Kind])
	}
	switch body := len(b) - n; {
	case body < int(fixed.RemainingLength):
		return nil, fmt.Errorf("%w: %s, got=%d", ErrMalformedOffsetBytesOutOfRange, fixed, body)
	case body > int(fixed.RemainingLength):
		return nil, fmt.Errorf("%w: %s, got=%d", ErrMalformedRemainingLength, fixed, body)
	}
	return unpackBody(fixed, bytes.NewBuffer(b[n:]))
}

func unpackBody(fixed *FixedHeader, buf *bytes.Buffer) (Packet, error) {
	pkt, err := newPacket(fixed)
	if err != nil {
		return nil, err
	}
	if err := pkt.Unpack(buf); err != nil {
		return nil, fmt.Errorf("%s: %w", Kind[fixed.Kind], err)
	}
	// 可变报头和载荷必须恰好用完剩余长度
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%w: %s, surplus=%d", ErrMalformedRemainingLength, fixed, buf.Len())
	}
	return pkt, nil
}

func decodeAs[T Packet](b []byte, kinds ...byte) (T, error) {
	var zero T
	pkt, err := decode(b, kinds...)
	if err != nil {
		return zero, err
	}
	return pkt.(T), nil
}

func DecodeConnect(b []byte) (*CONNECT, error) { return decodeAs[*CONNECT](b, 0x1) }

func DecodeConnack(b []byte) (*CONNACK, error) { return decodeAs[*CONNACK](b, 0x2) }

func DecodePublish(b []byte) (*PUBLISH, error) { return decodeAs[*PUBLISH](b, 0x3) }

// DecodeAck decodes any of PUBACK, PUBREC, PUBREL and PUBCOMP.
func DecodeAck(b []byte) (*ACK, error) { return decodeAs[*ACK](b, 0x4, 0x5, 0x6, 0x7) }

func DecodeSubscribe(b []byte) (*SUBSCRIBE, error) { return decodeAs[*SUBSCRIBE](b, 0x8) }

func DecodeSuback(b []byte) (*SUBACK, error) { return decodeAs[*SUBACK](b, 0x9) }

func DecodeUnsubscribe(b []byte) (*UNSUBSCRIBE, error) { return decodeAs[*UNSUBSCRIBE](b, 0xA) }

func DecodeUnsuback(b []byte) (*UNSUBACK, error) { return decodeAs[*UNSUBACK](b, 0xB) }

func DecodePingreq(b []byte) (*PINGREQ, error) { return decodeAs[*PINGREQ](b, 0xC) }

func DecodePingresp(b []byte) (*PINGRESP, error) { return decodeAs[*PINGRESP](b, 0xD) }

func DecodeDisconnect(b []byte) (*DISCONNECT, error) { return decodeAs[*DISCONNECT](b, 0xE) }

// writePacket 在可变报头和载荷全部写入 body 之后再写固定报头, 剩余长度由 body 的长度决定.
func writePacket(w io.Writer, fixed *FixedHeader, body *bytes.Buffer) error {
	if body.Len() > MaxRemainingLength {
		return ErrPacketTooLarge
	}
	fixed.RemainingLength = uint32(body.Len())
	if err := fixed.Pack(w); err != nil {
		return err
	}
	_, err := body.WriteTo(w)
	return err
}

// header returns fixed, allocating it when nil, with kind and the reserved flags set.
func header(fixed *FixedHeader, kind byte) *FixedHeader {
	if fixed == nil {
		fixed = &FixedHeader{}
	}
	fixed.Kind = kind
	if flags, ok := reservedFlags[kind]; ok {
		fixed.setFlags(flags)
	}
	return fixed
}
