package mqttpacket

import (
	"fmt"
	"strings"
)

// Control packet types. Position: byte 1, bits 7-4
const (
	RESERVED    byte = 0x0
	CONNECT     byte = 0x1
	CONNACK     byte = 0x2
	PUBLISH     byte = 0x3
	PUBACK      byte = 0x4
	PUBREC      byte = 0x5
	PUBREL      byte = 0x6
	PUBCOMP     byte = 0x7
	SUBSCRIBE   byte = 0x8
	SUBACK      byte = 0x9
	UNSUBSCRIBE byte = 0xA
	UNSUBACK    byte = 0xB
	PINGREQ     byte = 0xC
	PINGRESP    byte = 0xD
	DISCONNECT  byte = 0xE
	FORBIDDEN   byte = 0xF
)

var kinds = map[string]byte{
	"connect":     CONNECT,
	"connack":     CONNACK,
	"publish":     PUBLISH,
	"puback":      PUBACK,
	"pubrec":      PUBREC,
	"pubrel":      PUBREL,
	"pubcomp":     PUBCOMP,
	"subscribe":   SUBSCRIBE,
	"suback":      SUBACK,
	"unsubscribe": UNSUBSCRIBE,
	"unsuback":    UNSUBACK,
	"pingreq":     PINGREQ,
	"pingresp":    PINGRESP,
	"disconnect":  DISCONNECT,
}

// ParseKind maps a packet name such as "publish" or "PUBREL" to its type.
func ParseKind(name string) (byte, error) {
	kind, ok := kinds[strings.ToLower(name)]
	if !ok {
		return RESERVED, fmt.Errorf("unknown packet kind: %q", name)
	}
	return kind, nil
}

// kindLabel is the prometheus label value for a packet type.
func kindLabel(kind byte) string {
	for name, k := range kinds {
		if k == kind {
			return name
		}
	}
	return "unknown"
}
