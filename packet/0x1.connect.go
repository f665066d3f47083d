package packet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang-io/mqttpacket/topic"
)

var (
	// NAME v3.1.1 协议名, 参考章节 3.1.2.1 Protocol Name
	NAME = []byte{0x00, 0x04, 'M', 'Q', 'T', 'T'}
	// NAME310 v3.1 协议名
	NAME310 = []byte{0x00, 0x06, 'M', 'Q', 'I', 's', 'd', 'p'}
)

// MaxClientIDLength310 v3.1 客户端标识符的最大长度
const MaxClientIDLength310 = 23

// CONNECT 客户端请求连接服务端
//
// MQTT v3.1.1: 参考章节 3.1 CONNECT - Client requests a connection to a Server
//
// 报文结构:
// 固定报头: 报文类型0x01，标志位必须为0
// 可变报头: 协议名、协议级别、连接标志、保持连接
// 载荷: 客户端标识符、遗嘱主题、遗嘱消息、用户名、密码 (按此顺序，除客户端标识符外均可选)
type CONNECT struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	// ProtocolLevel 协议级别, 参考章节 3.1.2.2 Protocol Level
	// 4 = v3.1.1 ("MQTT"), 3 = v3.1 ("MQIsdp"). 0 时按 v3.1.1 编码.
	ProtocolLevel byte `json:"ProtocolLevel,omitempty"`

	// CleanSession 清理会话标志, 参考章节 3.1.2.4 Clean Session
	CleanSession bool `json:"CleanSession,omitempty"`

	// KeepAlive 保持连接, 以秒为单位, 参考章节 3.1.2.10 Keep Alive
	KeepAlive uint16 `json:"KeepAlive,omitempty"`

	// ClientID 客户端标识符, 参考章节 3.1.3.1 Client Identifier
	ClientID string `json:"ClientID,omitempty"`

	// Will 遗嘱消息. nil 表示遗嘱标志为0, 参考章节 3.1.2.5 Will Flag
	Will *Will `json:"Will,omitempty"`

	// Username nil 表示用户名标志为0. 空字符串是一个存在的用户名.
	Username *string `json:"Username,omitempty"`

	// Password nil 表示密码标志为0. v3.1.1 中密码是二进制数据, 参考章节 3.1.3.5 Password
	Password []byte `json:"Password,omitempty"`
}

// Will 遗嘱消息, 在客户端异常断开时由服务端发布
type Will struct {
	TopicName string
	Message   []byte
	Retain    bool  // 保留标志
	QoS       uint8 // 服务质量
}

func (pkt *CONNECT) Kind() byte {
	return 0x1
}

func (pkt *CONNECT) String() string {
	return fmt.Sprintf("[0x1]CONNECT: ClientID=%s, KeepAlive=%d, CleanSession=%v", pkt.ClientID, pkt.KeepAlive, pkt.CleanSession)
}

func (pkt *CONNECT) level() byte {
	if pkt.ProtocolLevel == 0 {
		return VERSION311
	}
	return pkt.ProtocolLevel
}

// Flags assembles the connect flags byte from the packet fields.
func (pkt *CONNECT) Flags() ConnectFlags {
	var wr, wq, wf uint8
	if pkt.Will != nil {
		wr, wq, wf = b2i(pkt.Will.Retain), pkt.Will.QoS, 1
	}
	uf := b2i(pkt.Username != nil) // UserNameFlag - bit 7
	pf := b2i(pkt.Password != nil) // PasswordFlag - bit 6
	cs := b2i(pkt.CleanSession)    // CleanSession - bit 1
	return ConnectFlags(uf<<7 | pf<<6 | wr<<5 | wq<<3 | wf<<2 | cs<<1)
}

// Validate checks the fields a CONNECT needs before anything is written.
//
// 客户端标识符的规则与协议级别有关:
// - v3.1.1: 允许长度为0的客户端标识符, 但此时清理会话标志必须为1 [MQTT-3.1.3-7]
// - v3.1: 客户端标识符必须为1-23个字节
func (pkt *CONNECT) Validate() error {
	switch pkt.level() {
	case VERSION311:
		if pkt.ClientID == "" && !pkt.CleanSession {
			return fmt.Errorf("%w: empty client id requires clean session", ErrClientIdentifierNotValid)
		}
		// 如果用户名标志被设置为 0，密码标志也必须设置为 0 [MQTT-3.1.2-22]
		if pkt.Password != nil && pkt.Username == nil {
			return ErrProtocolViolationPasswordNoFlag
		}
	case VERSION310:
		if pkt.ClientID == "" {
			return fmt.Errorf("%w: empty client id", ErrClientIdentifierNotValid)
		}
		if len(pkt.ClientID) > MaxClientIDLength310 {
			return ErrClientIdentifierTooLong
		}
	default:
		return fmt.Errorf("%w: level=%d", ErrProtocolViolationProtocolVersion, pkt.ProtocolLevel)
	}
	if pkt.Will != nil {
		// 遗嘱 QoS 的值不能等于 3 [MQTT-3.1.2-14]
		if pkt.Will.QoS > 2 {
			return fmt.Errorf("%w: will qos=%d", ErrProtocolViolationQosOutOfRange, pkt.Will.QoS)
		}
		if pkt.Will.TopicName == "" {
			return ErrProtocolViolationWillFlagNoPayload
		}
		if err := topic.ValidateName(pkt.Will.TopicName); err != nil {
			return fmt.Errorf("%w: will: %w", ErrProtocolViolationInvalidTopic, err)
		}
	}
	return nil
}

func (pkt *CONNECT) Pack(w io.Writer) error {
	if err := pkt.Validate(); err != nil {
		return err
	}
	pkt.FixedHeader = header(pkt.FixedHeader, 0x1)

	buf := GetBuffer()
	defer PutBuffer(buf)

	// 可变报头: 协议名 + 协议级别 + 连接标志 + 保持连接
	if pkt.level() == VERSION310 {
		buf.Write(NAME310)
	} else {
		buf.Write(NAME)
	}
	buf.WriteByte(pkt.level())
	buf.WriteByte(byte(pkt.Flags()))
	buf.Write(i2b(pkt.KeepAlive))

	// 载荷: 客户端标识符, [遗嘱主题, 遗嘱消息], [用户名], [密码]
	if err := writeUTF8(buf, pkt.ClientID); err != nil {
		return fmt.Errorf("client id: %w", err)
	}
	if pkt.Will != nil {
		if err := writeUTF8(buf, pkt.Will.TopicName); err != nil {
			return fmt.Errorf("will topic: %w", err)
		}
		if err := writeUTF8(buf, pkt.Will.Message); err != nil {
			return fmt.Errorf("will message: %w", err)
		}
	}
	if pkt.Username != nil {
		if err := writeUTF8(buf, *pkt.Username); err != nil {
			return fmt.Errorf("username: %w", err)
		}
	}
	if pkt.Password != nil {
		if err := writeUTF8(buf, pkt.Password); err != nil {
			return fmt.Errorf("password: %w", err)
		}
	}
	return writePacket(w, pkt.FixedHeader, buf)
}

func (pkt *CONNECT) Unpack(buf *bytes.Buffer) error {
	name, err := decodeUTF8[string](buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedProtocolName, err)
	}
	if pkt.ProtocolLevel, err = readByte(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedProtocolVersion, err)
	}
	switch {
	case name == "MQTT" && pkt.ProtocolLevel == VERSION311:
	case name == "MQIsdp" && pkt.ProtocolLevel == VERSION310:
	default:
		return fmt.Errorf("%w: name=%q, level=%d", ErrMalformedProtocolVersion, name, pkt.ProtocolLevel)
	}

	flags, err := readByte(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFlags, err)
	}
	cf := ConnectFlags(flags)
	// 保留位不做校验, 与固定报头的宽松策略一致
	if cf.WillQoS() > 2 {
		return ErrMalformedQos
	}
	pkt.CleanSession = cf.CleanSession()

	if pkt.KeepAlive, err = readUint16(buf); err != nil {
		return err
	}

	if pkt.ClientID, err = decodeUTF8[string](buf); err != nil {
		return err
	}

	if cf.WillFlag() {
		pkt.Will = &Will{QoS: cf.WillQoS(), Retain: cf.WillRetain()}
		if pkt.Will.TopicName, err = decodeUTF8[string](buf); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedWillTopic, err)
		}
		if pkt.Will.Message, err = decodeUTF8[[]byte](buf); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedWillPayload, err)
		}
	}

	if cf.UserNameFlag() {
		username, err := decodeUTF8[string](buf)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedUsername, err)
		}
		pkt.Username = &username
	}
	if cf.PasswordFlag() {
		if pkt.Password, err = decodeUTF8[[]byte](buf); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedPassword, err)
		}
	}
	return nil
}

// ConnectFlags 连接标志，8位标志字段
// 参考章节: 3.1.2.3 Connect Flags
// 标志位定义:
// - bit 7: UserNameFlag - 用户名标志
// - bit 6: PasswordFlag - 密码标志
// - bit 5: WillRetain - 遗嘱保留标志
// - bit 4-3: WillQoS - 遗嘱QoS等级
// - bit 2: WillFlag - 遗嘱标志
// - bit 1: CleanSession - 清理会话标志
// - bit 0: Reserved - 保留位，必须为0
type ConnectFlags uint8

// Reserved 保留位，位置: bit 0
func (f ConnectFlags) Reserved() uint8 {
	return uint8(f) & 0x01
}

// CleanSession 清理会话标志，位置: bit 1
func (f ConnectFlags) CleanSession() bool {
	return (uint8(f) & 0x02) == 0x02
}

// WillFlag 遗嘱标志，位置: bit 2
// 注意: 如果此标志为1，则必须包含遗嘱主题和遗嘱载荷
func (f ConnectFlags) WillFlag() bool {
	return (uint8(f) & 0x04) == 0x04
}

// WillQoS 遗嘱QoS等级，位置: bits 4-3
func (f ConnectFlags) WillQoS() uint8 {
	return (uint8(f) & 0x18) >> 3
}

// WillRetain 遗嘱保留标志，位置: bit 5
func (f ConnectFlags) WillRetain() bool {
	return (uint8(f) & 0x20) == 0x20
}

// UserNameFlag 用户名标志，位置: bit 7
func (f ConnectFlags) UserNameFlag() bool {
	return (uint8(f) & 0x80) == 0x80
}

// PasswordFlag 密码标志，位置: bit 6
func (f ConnectFlags) PasswordFlag() bool {
	return (uint8(f) & 0x40) == 0x40
}
