package packet

import (
	"bytes"
	"io"
)

// DISCONNECT 断开连接报文
//
// MQTT v3.1.1: 参考章节 3.14 DISCONNECT - Disconnect notification
// 固定报头: 报文类型0x0E，标志位必须为0，剩余长度为0
// 客户端发送 DISCONNECT 之后必须关闭网络连接 [MQTT-3.14.4-1]，服务端收到后必须丢弃遗嘱消息.
type DISCONNECT struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *DISCONNECT) Kind() byte {
	return 0xE
}

func (pkt *DISCONNECT) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, 0xE)
	return writePacket(w, pkt.FixedHeader, new(bytes.Buffer))
}

func (pkt *DISCONNECT) Unpack(_ *bytes.Buffer) error {
	return nil
}
