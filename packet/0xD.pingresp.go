package packet

import (
	"bytes"
	"io"
)

// PINGRESP 心跳响应报文, 参考章节 3.13 PINGRESP - PING response
type PINGRESP struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *PINGRESP) Kind() byte {
	return 0xD
}

func (pkt *PINGRESP) Pack(w io.Writer) error {
	pkt.FixedHeader = header(pkt.FixedHeader, 0xD)
	return writePacket(w, pkt.FixedHeader, new(bytes.Buffer))
}

func (pkt *PINGRESP) Unpack(_ *bytes.Buffer) error {
	return nil
}
