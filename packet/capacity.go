package packet

import (
	"errors"
	"fmt"
)

// Granularity 输出缓冲区的分配粒度
const Granularity = 1 * KB

// BufferSize rounds estimate up to a multiple of Granularity, always keeping
// at least one spare chunk so that small header overheads never need a regrow.
func BufferSize(estimate int) int {
	if estimate < 0 {
		estimate = 0
	}
	return (estimate/Granularity + 1) * Granularity
}

// Encode 将报文编码为一个新分配的字节切片
func Encode(pkt Packet) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	if err := pkt.Pack(buf); err != nil {
		return nil, err
	}
	b := make([]byte, buf.Len())
	copy(b, buf.Bytes())
	return b, nil
}

// Size returns the exact number of bytes pkt encodes to.
func Size(pkt Packet) (int, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	if err := pkt.Pack(buf); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

// Serialize 将报文写入调用方提供的缓冲区, 返回写入的字节数.
// 报文先在内部缓冲区中完整编码; dst 放不下时返回 ErrBufferTooShort, 且 dst 不会被修改.
func Serialize(dst []byte, pkt Packet) (int, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	if err := pkt.Pack(buf); err != nil {
		return 0, err
	}
	if buf.Len() > len(dst) {
		return 0, fmt.Errorf("%w: need=%d, have=%d", ErrBufferTooShort, buf.Len(), len(dst))
	}
	return copy(dst, buf.Bytes()), nil
}

// Encoder reuses one output buffer across calls. The buffer grows in
// Granularity steps. An Encoder must not be used by more than one goroutine,
// and the returned slice is only valid until the next call.
type Encoder struct {
	buf []byte
}

func NewEncoder(estimate int) *Encoder {
	return &Encoder{buf: make([]byte, BufferSize(estimate))}
}

func (e *Encoder) Encode(pkt Packet) ([]byte, error) {
	n, err := Serialize(e.buf, pkt)
	if errors.Is(err, ErrBufferTooShort) {
		size, err := Size(pkt)
		if err != nil {
			return nil, err
		}
		e.buf = make([]byte, BufferSize(size))
		n, err = Serialize(e.buf, pkt)
		if err != nil {
			return nil, err
		}
		return e.buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return e.buf[:n], nil
}
