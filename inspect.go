package mqttpacket

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/golang-io/mqttpacket/packet"
	"github.com/golang-io/requests"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// EncodeRequest 描述一个待编码的报文. 只有与报文类型相关的字段会被使用.
type EncodeRequest struct {
	// CONNECT
	ClientID     string       `json:"clientId,omitempty"`
	KeepAlive    uint16       `json:"keepAlive,omitempty"`
	CleanSession bool         `json:"cleanSession,omitempty"`
	Version      byte         `json:"version,omitempty"`
	Username     *string      `json:"username,omitempty"`
	Password     *string      `json:"password,omitempty"`
	Will         *packet.Will `json:"will,omitempty"`

	// CONNACK
	SessionPresent bool  `json:"sessionPresent,omitempty"`
	ReturnCode     uint8 `json:"returnCode,omitempty"`

	// PUBLISH
	Topic   string `json:"topic,omitempty"`
	Payload string `json:"payload,omitempty"`
	QoS     uint8  `json:"qos,omitempty"`
	Retain  bool   `json:"retain,omitempty"`

	// PUBLISH, 确认报文
	Dup bool `json:"dup,omitempty"`

	// 除 CONNECT, CONNACK, PINGREQ, PINGRESP, DISCONNECT 之外的报文
	PacketID uint16 `json:"packetId,omitempty"`

	// SUBSCRIBE
	Subscriptions []packet.Subscription `json:"subscriptions,omitempty"`
	// UNSUBSCRIBE
	Filters []string `json:"filters,omitempty"`
	// SUBACK
	ReturnCodes []byte `json:"returnCodes,omitempty"`
}

// Packet builds the packet of the given kind from the request fields.
func (req *EncodeRequest) Packet(kind byte) (packet.Packet, error) {
	switch kind {
	case CONNECT:
		connect := &packet.CONNECT{
			ProtocolLevel: req.Version,
			CleanSession:  req.CleanSession,
			KeepAlive:     req.KeepAlive,
			ClientID:      req.ClientID,
			Will:          req.Will,
			Username:      req.Username,
		}
		if req.Password != nil {
			connect.Password = []byte(*req.Password)
		}
		return connect, nil
	case CONNACK:
		return &packet.CONNACK{SessionPresent: req.SessionPresent, ReturnCode: req.ReturnCode}, nil
	case PUBLISH:
		delivery, err := packet.NewDelivery(req.QoS, req.PacketID)
		if err != nil {
			return nil, err
		}
		return &packet.PUBLISH{
			FixedHeader: &packet.FixedHeader{Dup: b2i(req.Dup), Retain: b2i(req.Retain)},
			Delivery:    delivery,
			Message:     &packet.Message{TopicName: req.Topic, Content: []byte(req.Payload)},
		}, nil
	case PUBACK, PUBREC, PUBREL, PUBCOMP:
		return packet.NewAck(kind, req.Dup, req.PacketID)
	case SUBSCRIBE:
		return &packet.SUBSCRIBE{PacketID: req.PacketID, Subscriptions: req.Subscriptions}, nil
	case SUBACK:
		return &packet.SUBACK{PacketID: req.PacketID, ReturnCodes: req.ReturnCodes}, nil
	case UNSUBSCRIBE:
		return &packet.UNSUBSCRIBE{PacketID: req.PacketID, TopicFilters: req.Filters}, nil
	case UNSUBACK:
		return &packet.UNSUBACK{PacketID: req.PacketID}, nil
	case PINGREQ:
		return &packet.PINGREQ{}, nil
	case PINGRESP:
		return &packet.PINGRESP{}, nil
	case DISCONNECT:
		return &packet.DISCONNECT{}, nil
	}
	return nil, packet.ErrProtocolViolationUnsupportedKind
}

type EncodeResponse struct {
	Kind string `json:"kind"`
	Size int    `json:"size"`
	Hex  string `json:"hex"`
}

type DecodeResponse struct {
	Kind   string        `json:"kind,omitempty"`
	Packet packet.Packet `json:"packet,omitempty"`
	Error  string        `json:"error,omitempty"`
	// Malformed 为 true 表示字节序列无法解析, 而不是字段被拒绝
	Malformed bool `json:"malformed,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("write response: %v", err)
	}
}

// Encode 处理 /encode?kind=publish, 请求体是 EncodeRequest 的 JSON
func Encode(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, DecodeResponse{Error: err.Error()})
		return
	}
	req := &EncodeRequest{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, DecodeResponse{Error: err.Error()})
			return
		}
	}
	pkt, err := req.Packet(kind)
	if err != nil {
		stat.encodeFailed(kind)
		writeJSON(w, http.StatusBadRequest, DecodeResponse{Error: err.Error()})
		return
	}
	b, err := encode(pkt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, DecodeResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, EncodeResponse{Kind: packet.Kind[kind], Size: len(b), Hex: hex.EncodeToString(b)})
}

func decodeResponse(b []byte) (DecodeResponse, bool) {
	pkt, err := packet.Decode(b)
	if err != nil {
		kind := RESERVED
		if len(b) != 0 {
			kind = b[0] >> 4
		}
		stat.decodeFailed(kind)
		return DecodeResponse{Error: err.Error(), Malformed: packet.IsMalformed(err)}, false
	}
	stat.decoded(pkt.Kind(), len(b))
	return DecodeResponse{Kind: packet.Kind[pkt.Kind()], Packet: pkt}, true
}

// Decode 处理 /decode, 请求体是恰好一个报文的原始字节. ?hex=1 时请求体是十六进制文本.
func Decode(w http.ResponseWriter, r *http.Request) {
	buf, err := requests.ParseBody(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, DecodeResponse{Error: err.Error()})
		return
	}
	b := buf.Bytes()
	if r.URL.Query().Get("hex") != "" {
		if b, err = hex.DecodeString(string(b)); err != nil {
			writeJSON(w, http.StatusBadRequest, DecodeResponse{Error: err.Error()})
			return
		}
	}
	resp, ok := decodeResponse(b)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

var upgrader = websocket.Upgrader{
	Subprotocols: []string{"mqtt"}, // [MQTT-6.0.0-4]
	CheckOrigin:  func(*http.Request) bool { return true },
}

// WebSocket 处理 /ws. 客户端以二进制消息发送 MQTT 字节流, 报文可以跨越消息边界.
// 每解析出一个报文回复一个 Record 的 JSON 文本消息. 流无法解析时回复错误并关闭连接.
func WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("unsuccessful websocket negotiation: %v", err)
		return
	}
	defer conn.Close()

	capture, err := NewCapture(CONFIG.Filters...)
	if err != nil {
		_ = conn.WriteJSON(DecodeResponse{Error: err.Error()})
		return
	}
	err = capture.Walk(r.Context(), &wsReader{Conn: conn}, func(rec *Record) error {
		return conn.WriteJSON(rec)
	})
	var ce *websocket.CloseError
	if err != nil && !errors.As(err, &ce) {
		log.Debugf("websocket %s: %v", r.RemoteAddr, err)
		_ = conn.WriteJSON(DecodeResponse{Error: err.Error(), Malformed: packet.IsMalformed(err)})
	}
}

// wsReader joins the binary messages of a websocket connection into one stream.
type wsReader struct {
	*websocket.Conn
	r io.Reader
}

func (c *wsReader) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			mt, r, err := c.NextReader()
			if err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage { // [MQTT-6.0.0-1]
				return 0, errors.New("not binary message")
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// NewServeMux returns the inspector routes: /encode, /decode and /ws.
func NewServeMux(opts ...requests.Option) *requests.ServeMux {
	mux := requests.NewServeMux(opts...)
	mux.Route("/encode", Encode)
	mux.Route("/decode", Decode)
	mux.Route("/ws", WebSocket)
	return mux
}
