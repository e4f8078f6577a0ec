package wire

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Role/action byte pairs identifying each message type (§6 of the spec).
const (
	RoleLogin     = 'L'
	ActionLogin   = 'O' // LO: login request / reply

	RoleSub       = 'S'
	ActionSub     = 'S' // SS: subscribe
	ActionUnsub   = 'U' // SU: unsubscribe

	RoleQueue     = 'P'
	ActionCreate  = 'C' // PC: create queue
	ActionDelete  = 'D' // PD: delete queue
	ActionPublish = 'B' // PB: publish

	RoleHeartbeat   = 'H'
	ActionHeartbeat = 'B' // HB: heartbeat

	RoleQueueList = 'Q'
	ActionList    = 'L' // QL: catalog broadcast

	RoleInitial  = 'I'
	ActionInitial = 'N' // IN: initial catalog after login

	RoleMessage    = 'M'
	ActionSingle   = 'S' // MS: multicast of a published message
	ActionBatch    = 'A' // MA: batch replay for a new subscriber

	RoleNotice   = 'N'
	ActionDelete2 = 'D' // ND: queue deleted notice
)

// Type pair string constants, for dispatch switches and tests.
const (
	TypeLogin     = "LO"
	TypeSubscribe = "SS"
	TypeUnsub     = "SU"
	TypeCreate    = "PC"
	TypeDelete    = "PD"
	TypePublish   = "PB"
	TypeHeartbeat = "HB"
	TypeQueueList = "QL"
	TypeInitial   = "IN"
	TypeMessage   = "MS"
	TypeBatch     = "MA"
	TypeNotice    = "ND"
)

// StatusOK and the full "OK:..."/"ER:..." status strings carried in ack payloads.
const (
	StatusOK = "OK"

	ReasonLoggedIn       = "OK:LOGGED"
	ReasonReconnected    = "OK:RECONNECTED"
	ReasonIDTaken        = "ER:ID_TAKEN"
	ReasonIDTooShort     = "ER:ID_TOO_SHORT"
	ReasonIDTooLong      = "ER:ID_TOO_LONG"
	ReasonFirstLogin     = "ER:FIRST YOU MUST LOG IN"
	ReasonAlreadyLoggedIn = "ER:USER_ID_ALREADY_GIVEN"
	ReasonNoQueue        = "ER:NO_QUEUE"
	ReasonAlreadySub     = "ER:ALREADY_SUBSCRIBED"
	ReasonNotSubscribing = "ER:NOT_SUBSCRIBING"
	ReasonQueueExists    = "ER:QUEUE_EXISTS"
	ReasonMsgTooBig      = "ER:MSG_TOO_BIG"
)

// IsError reports whether an ack payload starts with the "ER:" sentinel.
func IsError(payload string) bool {
	return len(payload) >= 3 && payload[:3] == "ER:"
}

// EncodeQueueList builds the QL/IN payload: count(4) | (name_len(4)|name)*.
func EncodeQueueList(names []string) []byte {
	size := 4
	for _, n := range names {
		size += 4 + len(n)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(names)))
	off := 4
	for _, n := range names {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(n)))
		off += 4
		copy(buf[off:], n)
		off += len(n)
	}
	return buf
}

// DecodeQueueList parses a QL/IN payload.
func DecodeQueueList(payload []byte) ([]string, error) {
	if len(payload) < 4 {
		return nil, errors.New("wire: truncated queue-list payload")
	}
	count := binary.BigEndian.Uint32(payload[0:4])
	off := 4
	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(payload) {
			return nil, errors.New("wire: truncated queue-list entry")
		}
		nameLen := int(binary.BigEndian.Uint32(payload[off : off+4]))
		off += 4
		if off+nameLen > len(payload) {
			return nil, errors.New("wire: truncated queue-list name")
		}
		names = append(names, string(payload[off:off+nameLen]))
		off += nameLen
	}
	return names, nil
}

// PublishRequest is the decoded PB payload.
type PublishRequest struct {
	Name string
	TTL  uint32
	Text []byte
}

// EncodePublish builds the PB payload: name_len(4)|ttl(4)|name|text.
func EncodePublish(name string, ttl uint32, text []byte) []byte {
	buf := make([]byte, 4+4+len(name)+len(text))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(name)))
	binary.BigEndian.PutUint32(buf[4:8], ttl)
	off := 8
	copy(buf[off:], name)
	off += len(name)
	copy(buf[off:], text)
	return buf
}

// DecodePublish parses a PB payload.
func DecodePublish(payload []byte) (PublishRequest, error) {
	if len(payload) < 8 {
		return PublishRequest{}, errors.New("wire: truncated publish payload")
	}
	nameLen := int(binary.BigEndian.Uint32(payload[0:4]))
	ttl := binary.BigEndian.Uint32(payload[4:8])
	off := 8
	if off+nameLen > len(payload) {
		return PublishRequest{}, errors.New("wire: truncated publish name")
	}
	name := string(payload[off : off+nameLen])
	off += nameLen
	text := payload[off:]
	return PublishRequest{Name: name, TTL: ttl, Text: text}, nil
}

// EncodeMulticast builds the MS payload: name_len(4)|name|text.
func EncodeMulticast(name string, text []byte) []byte {
	buf := make([]byte, 4+len(name)+len(text))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(name)))
	off := 4
	copy(buf[off:], name)
	off += len(name)
	copy(buf[off:], text)
	return buf
}

// MulticastMessage is the decoded MS payload.
type MulticastMessage struct {
	Name string
	Text []byte
}

// DecodeMulticast parses an MS payload.
func DecodeMulticast(payload []byte) (MulticastMessage, error) {
	if len(payload) < 4 {
		return MulticastMessage{}, errors.New("wire: truncated multicast payload")
	}
	nameLen := int(binary.BigEndian.Uint32(payload[0:4]))
	off := 4
	if off+nameLen > len(payload) {
		return MulticastMessage{}, errors.New("wire: truncated multicast name")
	}
	name := string(payload[off : off+nameLen])
	off += nameLen
	text := payload[off:]
	return MulticastMessage{Name: name, Text: text}, nil
}

// EncodeBatch builds the MA payload: name_len(4)|name|(text_len(4)|text)*.
func EncodeBatch(name string, texts [][]byte) []byte {
	size := 4 + len(name)
	for _, t := range texts {
		size += 4 + len(t)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(name)))
	off := 4
	copy(buf[off:], name)
	off += len(name)
	for _, t := range texts {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(t)))
		off += 4
		copy(buf[off:], t)
		off += len(t)
	}
	return buf
}

// BatchMessage is the decoded MA payload.
type BatchMessage struct {
	Name  string
	Texts [][]byte
}

// DecodeBatch parses an MA payload.
func DecodeBatch(payload []byte) (BatchMessage, error) {
	if len(payload) < 4 {
		return BatchMessage{}, errors.New("wire: truncated batch payload")
	}
	nameLen := int(binary.BigEndian.Uint32(payload[0:4]))
	off := 4
	if off+nameLen > len(payload) {
		return BatchMessage{}, errors.New("wire: truncated batch name")
	}
	name := string(payload[off : off+nameLen])
	off += nameLen
	var texts [][]byte
	for off < len(payload) {
		if off+4 > len(payload) {
			return BatchMessage{}, errors.New("wire: truncated batch entry")
		}
		textLen := int(binary.BigEndian.Uint32(payload[off : off+4]))
		off += 4
		if off+textLen > len(payload) {
			return BatchMessage{}, errors.New("wire: truncated batch text")
		}
		texts = append(texts, payload[off:off+textLen])
		off += textLen
	}
	return BatchMessage{Name: name, Texts: texts}, nil
}
