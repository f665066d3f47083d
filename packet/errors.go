package packet

import (
	"errors"
	"fmt"
)

/*
================================================================================
MQTT 错误码定义
================================================================================

参考文档:
- MQTT v3.1.1: 章节 3.2.2.3 CONNACK Return code
- MQTT v3.1.1: 章节 4.8 Handling errors

错误分为三类:
1. 输入校验错误 (0x82): 字段缺失或取值非法，什么都不会写出
2. 容量错误 (0x95): 字段或报文超过协议上限，或者目标缓冲区不够大
3. 报文格式错误 (0x81): 解码时无法理解的字节序列

CONNACK 中非 0 的返回码不属于上述任何一类: 报文被正确解析，只是连接被拒绝。
================================================================================
*/

// ReasonCode MQTT原因码结构
// 包含错误码和英文原因描述
type ReasonCode struct {
	Code   uint8  // 错误码值
	Reason string // 英文原因描述
}

// Error 实现error接口，返回格式化的错误信息
func (rc ReasonCode) Error() string {
	return fmt.Sprintf("%d:%s", rc.Code, rc.Reason)
}

var (
	// CONNACK return codes, 参考章节 3.2.2.3 Connect Return code

	Accepted                       = ReasonCode{Code: 0x00, Reason: "connection accepted"}
	Err3UnsupportedProtocolVersion = ReasonCode{Code: 0x01, Reason: "unsupported protocol version"}
	Err3ClientIdentifierNotValid   = ReasonCode{Code: 0x02, Reason: "client identifier not valid"}
	Err3ServerUnavailable          = ReasonCode{Code: 0x03, Reason: "server unavailable"}
	ErrMalformedUsernameOrPassword = ReasonCode{Code: 0x04, Reason: "malformed username or password"}
	Err3NotAuthorized              = ReasonCode{Code: 0x05, Reason: "not authorized"}

	// SUBACK 中表示订阅失败的返回码
	ErrSubscriptionFailure = ReasonCode{Code: 0x80, Reason: "subscription failure"}
)

var (
	// ErrMalformedPacket 格式错误的包
	// 码值: 0x81
	// 含义: 收到的字节序列无法按协议解析
	ErrMalformedPacket = ReasonCode{Code: 0x81, Reason: "malformed packet"}

	ErrMalformedProtocolName          = ReasonCode{Code: 0x81, Reason: "malformed packet: protocol name"}
	ErrMalformedProtocolVersion       = ReasonCode{Code: 0x81, Reason: "malformed packet: protocol version"}
	ErrMalformedFlags                 = ReasonCode{Code: 0x81, Reason: "malformed packet: flags"}
	ErrMalformedPacketID              = ReasonCode{Code: 0x81, Reason: "malformed packet: packet identifier"}
	ErrMalformedTopic                 = ReasonCode{Code: 0x81, Reason: "malformed packet: topic"}
	ErrMalformedWillTopic             = ReasonCode{Code: 0x81, Reason: "malformed packet: will topic"}
	ErrMalformedWillPayload           = ReasonCode{Code: 0x81, Reason: "malformed packet: will message"}
	ErrMalformedUsername              = ReasonCode{Code: 0x81, Reason: "malformed packet: username"}
	ErrMalformedPassword              = ReasonCode{Code: 0x81, Reason: "malformed packet: password"}
	ErrMalformedQos                   = ReasonCode{Code: 0x81, Reason: "malformed packet: qos"}
	ErrMalformedOffsetBytesOutOfRange = ReasonCode{Code: 0x81, Reason: "malformed packet: offset bytes out of range"}
	ErrMalformedOffsetByteOutOfRange  = ReasonCode{Code: 0x81, Reason: "malformed packet: offset byte out of range"}
	ErrMalformedOffsetUintOutOfRange  = ReasonCode{Code: 0x81, Reason: "malformed packet: offset uint out of range"}
	ErrMalformedVariableByteInteger   = ReasonCode{Code: 0x81, Reason: "malformed packet: variable byte integer out of range"}
	ErrMalformedRemainingLength       = ReasonCode{Code: 0x81, Reason: "malformed packet: remaining length does not match packet size"}
	ErrMalformedReasonCode            = ReasonCode{Code: 0x81, Reason: "malformed packet: reason code"}
	ErrWrongPacketType                = ReasonCode{Code: 0x81, Reason: "malformed packet: unexpected packet type"}
)

var (
	// ErrProtocolViolation 协议违规
	// 码值: 0x82
	// 含义: 待编码的报文字段违反协议约束
	ErrProtocolViolation = ReasonCode{Code: 0x82, Reason: "protocol violation"}

	ErrProtocolViolationProtocolVersion    = ReasonCode{Code: 0x82, Reason: "protocol violation: protocol version"}
	ErrProtocolViolationPasswordNoFlag     = ReasonCode{Code: 0x82, Reason: "protocol violation: password set but no username"}
	ErrProtocolViolationNoPacketID         = ReasonCode{Code: 0x82, Reason: "protocol violation: missing packet id"}
	ErrProtocolViolationQosOutOfRange      = ReasonCode{Code: 0x82, Reason: "protocol violation: qos out of range"}
	ErrProtocolViolationFlags              = ReasonCode{Code: 0x82, Reason: "protocol violation: flag out of range"}
	ErrProtocolViolationInvalidTopic       = ReasonCode{Code: 0x82, Reason: "protocol violation: invalid topic"}
	ErrProtocolViolationNoFilters          = ReasonCode{Code: 0x82, Reason: "protocol violation: must contain at least one filter"}
	ErrProtocolViolationNoTopic            = ReasonCode{Code: 0x82, Reason: "protocol violation: no topic"}
	ErrProtocolViolationNoReturnCodes      = ReasonCode{Code: 0x82, Reason: "protocol violation: must contain at least one return code"}
	ErrProtocolViolationWillFlagNoPayload  = ReasonCode{Code: 0x82, Reason: "protocol violation: will flag no payload"}
	ErrProtocolViolationUnsupportedKind    = ReasonCode{Code: 0x82, Reason: "protocol violation: unsupported packet type"}
	ErrProtocolViolationUnexpectedDelivery = ReasonCode{Code: 0x82, Reason: "protocol violation: unknown delivery"}
	ErrClientIdentifierNotValid            = ReasonCode{Code: 0x85, Reason: "client identifier not valid"}
	ErrClientIdentifierTooLong             = ReasonCode{Code: 0x85, Reason: "client identifier too long"}
	ErrProtocolViolationInvalidAckKind     = ReasonCode{Code: 0x82, Reason: "protocol violation: not an acknowledgement packet type"}
	ErrProtocolViolationDupNoQos           = ReasonCode{Code: 0x82, Reason: "protocol violation: dup true with no qos"}
)

var (
	// ErrPacketTooLarge 报文过大
	// 码值: 0x95
	// 含义: 剩余长度超过 268,435,455
	ErrPacketTooLarge = ReasonCode{Code: 0x95, Reason: "packet too large"}

	// ErrFieldTooLarge 字符串或二进制字段超过 65535 字节
	ErrFieldTooLarge = ReasonCode{Code: 0x95, Reason: "packet too large: field exceeds 65535 bytes"}

	// ErrBufferTooShort 目标缓冲区不足以容纳编码后的报文，目标缓冲区未被写入
	ErrBufferTooShort = ReasonCode{Code: 0x95, Reason: "buffer too short"}
)

// IsMalformed reports whether err is a wire-format parse failure, as opposed to
// an encode-side validation or capacity failure.
func IsMalformed(err error) bool {
	var rc ReasonCode
	return errors.As(err, &rc) && rc.Code == ErrMalformedPacket.Code
}

// ConnackReturnCode maps a CONNACK return code to its ReasonCode.
// Codes above 5 are reserved; they are reported verbatim with an "unknown" reason.
func ConnackReturnCode(code uint8) ReasonCode {
	switch code {
	case Accepted.Code:
		return Accepted
	case Err3UnsupportedProtocolVersion.Code:
		return Err3UnsupportedProtocolVersion
	case Err3ClientIdentifierNotValid.Code:
		return Err3ClientIdentifierNotValid
	case Err3ServerUnavailable.Code:
		return Err3ServerUnavailable
	case ErrMalformedUsernameOrPassword.Code:
		return ErrMalformedUsernameOrPassword
	case Err3NotAuthorized.Code:
		return Err3NotAuthorized
	}
	return ReasonCode{Code: code, Reason: "unknown return code"}
}
