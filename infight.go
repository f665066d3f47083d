package mqttpacket

import (
	"fmt"
	"slices"
	"sync"

	"github.com/golang-io/mqttpacket/packet"
)

// InFight 用这个字典来跟踪没有完成确认流程的 QoS 1, 2 报文.
// 键是报文标识符, 值是流程中下一个应当出现的确认报文类型.
type InFight struct {
	mu   *sync.RWMutex
	maps map[uint16]byte
}

func newInFight() *InFight {
	return &InFight{
		mu:   new(sync.RWMutex),
		maps: make(map[uint16]byte),
	}
}

// Publish starts tracking a QoS 1 or QoS 2 PUBLISH. QoS 0 carries no identifier and is ignored.
func (i *InFight) Publish(pkt *packet.PUBLISH) {
	id, ok := pkt.PacketID()
	if !ok {
		return
	}
	next := PUBACK
	if pkt.Delivery.Level() == 2 {
		next = PUBREC
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.maps[id] = next
}

// Ack advances the flow of ack.PacketID. QoS 1: PUBLISH -> PUBACK.
// QoS 2: PUBLISH -> PUBREC -> PUBREL -> PUBCOMP.
func (i *InFight) Ack(ack *packet.ACK) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	want, ok := i.maps[ack.PacketID]
	if !ok {
		return fmt.Errorf("%s: no publish in flight", ack)
	}
	if want != ack.Kind() {
		return fmt.Errorf("%s: want %s", ack, packet.Kind[want])
	}
	switch ack.Kind() {
	case PUBREC:
		i.maps[ack.PacketID] = PUBREL
	case PUBREL:
		i.maps[ack.PacketID] = PUBCOMP
	default:
		delete(i.maps, ack.PacketID)
	}
	return nil
}

// Pending returns the identifiers still waiting for an acknowledgement, sorted.
func (i *InFight) Pending() []uint16 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ids := make([]uint16, 0, len(i.maps))
	for id := range i.maps {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
