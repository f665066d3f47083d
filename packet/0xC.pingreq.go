package packet

import (
	"bytes"
	"io"
)

// PINGREQ 心跳请求报文
//
// MQTT v3.1.1: 参考章节 3.12 PINGREQ - PING request
//
// 报文结构:
// 固定报头: 报文类型0x0C，标志位必须为0，剩余长度为0
// 可变报头: 无
// 载荷: 无载荷
//
// 用途:
// - 用于客户端向服务端发送心跳请求
// - 在KeepAlive时间间隔内没有其他报文时发送
type PINGREQ struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *PINGREQ) Kind() byte {
	return 0xC
}

func (pkt *PINGREQ) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, 0xC)
	return writePacket(w, pkt.FixedHeader, new(bytes.Buffer))
}

func (pkt *PINGREQ) Unpack(_ *bytes.Buffer) error {
	return nil
}
