package packet

import (
	"bytes"
	"sync"
)

// maxPooledBuffer 超过此容量的缓冲区不放回池中, 避免一个大报文长期占用内存
const maxPooledBuffer = 64 * KB

type Buffer struct {
	pool *sync.Pool
	max  int
}

func newBuffer(max int) *Buffer {
	return &Buffer{
		pool: &sync.Pool{
			New: func() any { return bytes.NewBuffer(make([]byte, 0, Granularity)) },
		},
		max: max,
	}
}

func (b *Buffer) Get() *bytes.Buffer {
	return b.pool.Get().(*bytes.Buffer)
}

func (b *Buffer) Put(buf *bytes.Buffer) {
	if buf.Cap() > b.max {
		return
	}
	buf.Reset()
	b.pool.Put(buf)
}

var buffer = newBuffer(maxPooledBuffer)

// GetBuffer 获取一个空的临时缓冲区
func GetBuffer() *bytes.Buffer {
	return buffer.Get()
}

// PutBuffer 归还临时缓冲区, 调用后不能再引用其内容
func PutBuffer(buf *bytes.Buffer) {
	buffer.Put(buf)
}
