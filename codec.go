package mqttpacket

import (
	"github.com/golang-io/mqttpacket/packet"
)

// encode 编码并统计, 失败时不返回任何字节
func encode(pkt packet.Packet) ([]byte, error) {
	b, err := packet.Encode(pkt)
	if err != nil {
		stat.encodeFailed(pkt.Kind())
		return nil, err
	}
	stat.encoded(pkt.Kind(), len(b))
	return b, nil
}

// observe records the outcome of a decode call under the given packet type.
func observe(kind byte, b []byte, err error) error {
	if err != nil {
		stat.decodeFailed(kind)
		return err
	}
	stat.decoded(kind, len(b))
	return nil
}

// SerializeConnect 编码 CONNECT 报文
func SerializeConnect(opts ConnectOptions) ([]byte, error) {
	return encode(&packet.CONNECT{
		ProtocolLevel: opts.Version,
		CleanSession:  opts.CleanSession,
		KeepAlive:     opts.KeepAlive,
		ClientID:      opts.ClientID,
		Will:          opts.Will,
		Username:      opts.Username,
		Password:      opts.Password,
	})
}

type ConnackResult struct {
	// Accepted 返回码为 0
	Accepted       bool  `json:"accepted"`
	ReturnCode     uint8 `json:"returnCode"`
	SessionPresent bool  `json:"sessionPresent"`
}

// DeserializeConnack 解码 CONNACK 报文. 非0返回码不是错误, 由 Accepted 区分.
func DeserializeConnack(b []byte) (ConnackResult, error) {
	pkt, err := packet.DecodeConnack(b)
	if err := observe(CONNACK, b, err); err != nil {
		return ConnackResult{}, err
	}
	if !pkt.Accepted() {
		stat.ConnackRefused.Inc()
	}
	return ConnackResult{Accepted: pkt.Accepted(), ReturnCode: pkt.ReturnCode, SessionPresent: pkt.SessionPresent}, nil
}

type PublishOptions struct {
	QoS      uint8
	PacketID uint16
	Dup      bool
	Retain   bool
}

// SerializePublish 编码 PUBLISH 报文. QoS 为 0 时忽略 PacketID.
func SerializePublish(topicName string, payload []byte, opts PublishOptions) ([]byte, error) {
	delivery, err := packet.NewDelivery(opts.QoS, opts.PacketID)
	if err != nil {
		stat.encodeFailed(PUBLISH)
		return nil, err
	}
	return encode(&packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Dup: b2i(opts.Dup), Retain: b2i(opts.Retain)},
		Delivery:    delivery,
		Message:     &packet.Message{TopicName: topicName, Content: payload},
	})
}

type PublishResult struct {
	OK      bool   `json:"ok"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
	// PacketID QoS 0 时为 0
	PacketID uint16 `json:"packetId"`
	Dup      bool   `json:"dup"`
	QoS      uint8  `json:"qos"`
	Retain   bool   `json:"retain"`
}

// DeserializePublish 解码 PUBLISH 报文
func DeserializePublish(b []byte) (PublishResult, error) {
	pkt, err := packet.DecodePublish(b)
	if err := observe(PUBLISH, b, err); err != nil {
		return PublishResult{}, err
	}
	id, _ := pkt.PacketID()
	return PublishResult{
		OK:       true,
		Topic:    pkt.Message.TopicName,
		Payload:  pkt.Message.Content,
		PacketID: id,
		Dup:      pkt.Dup == 1,
		QoS:      pkt.Delivery.Level(),
		Retain:   pkt.Retain == 1,
	}, nil
}

// SerializeSubscribe 编码 SUBSCRIBE 报文, 至少需要一个订阅
func SerializeSubscribe(packetID uint16, subscriptions ...packet.Subscription) ([]byte, error) {
	return encode(&packet.SUBSCRIBE{PacketID: packetID, Subscriptions: subscriptions})
}

type SubackResult struct {
	// OK 为 false 表示至少一个订阅被拒绝 (返回码 0x80)
	OK         bool   `json:"ok"`
	PacketID   uint16 `json:"packetId"`
	GrantedQoS []byte `json:"grantedQos"`
}

// DeserializeSuback 解码 SUBACK 报文, 每个载荷字节对应一个订阅
func DeserializeSuback(b []byte) (SubackResult, error) {
	pkt, err := packet.DecodeSuback(b)
	if err := observe(SUBACK, b, err); err != nil {
		return SubackResult{}, err
	}
	return SubackResult{OK: pkt.Granted(), PacketID: pkt.PacketID, GrantedQoS: pkt.ReturnCodes}, nil
}

// SerializeUnsubscribe 编码 UNSUBSCRIBE 报文, 至少需要一个主题过滤器
func SerializeUnsubscribe(packetID uint16, filters ...string) ([]byte, error) {
	return encode(&packet.UNSUBSCRIBE{PacketID: packetID, TopicFilters: filters})
}

// SerializeAck 编码 PUBACK, PUBREC, PUBREL 或 PUBCOMP
func SerializeAck(kind byte, dup bool, packetID uint16) ([]byte, error) {
	ack, err := packet.NewAck(kind, dup, packetID)
	if err != nil {
		stat.encodeFailed(kind)
		return nil, err
	}
	return encode(ack)
}

type AckResult struct {
	OK       bool   `json:"ok"`
	Kind     byte   `json:"kind"`
	Dup      bool   `json:"dup"`
	PacketID uint16 `json:"packetId"`
}

// DeserializeAck 解码 PUBACK, PUBREC, PUBREL 或 PUBCOMP, 类型由固定报头给出
func DeserializeAck(b []byte) (AckResult, error) {
	pkt, err := packet.DecodeAck(b)
	if err != nil {
		stat.decodeFailed(PUBACK)
		return AckResult{}, err
	}
	stat.decoded(pkt.Kind(), len(b))
	return AckResult{OK: true, Kind: pkt.Kind(), Dup: pkt.IsDup(), PacketID: pkt.PacketID}, nil
}

func SerializePingreq() ([]byte, error) {
	return encode(&packet.PINGREQ{})
}

func SerializeDisconnect() ([]byte, error) {
	return encode(&packet.DISCONNECT{})
}

func b2i(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
