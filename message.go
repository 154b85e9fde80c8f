package libemit

import "fmt"

type MessageType byte

const (
	DataMessage   MessageType = 1
	BinaryMessage MessageType = 2
	CloseMessage  MessageType = 8
	PingMessage   MessageType = 9
	PongMessage   MessageType = 10
)

func (t MessageType) Is(other MessageType) bool { return t == other }

func (t MessageType) IsData() bool { return t.Is(DataMessage) || t.Is(BinaryMessage) }

func (t MessageType) IsControl() bool {
	return t.Is(PingMessage) || t.Is(PongMessage) || t.Is(CloseMessage)
}

func (t MessageType) String() string {
	switch t {
	case DataMessage:
		return "DATA"
	case BinaryMessage:
		return "BIN"
	case CloseMessage:
		return "CLOSE"
	case PingMessage:
		return "PING"
	case PongMessage:
		return "PONG"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

type Message interface {
	Type() MessageType
	Data() []byte
	String() string
}

type message struct {
	kind MessageType
	data []byte
}

func (m message) Type() MessageType { return m.kind }

func (m message) Data() []byte { return m.data }

func (m message) String() string {
	return fmt.Sprintf("Message{type=%s,data=%s}", m.kind, m.data)
}

// CloseFrame is the message delivered when the peer sends a close frame.
type CloseFrame struct {
	message
	Code int
}

func (m CloseFrame) String() string {
	return fmt.Sprintf("Message{type=%s,code=%d,data=%s}", m.kind, m.Code, m.data)
}

func (m CloseFrame) Error() string { return m.String() }

func NewMessage(mt MessageType, data []byte) Message {
	return message{kind: mt, data: data}
}

func NewDataMessage(data []byte) Message { return NewMessage(DataMessage, data) }

func NewBinaryMessage(data []byte) Message { return NewMessage(BinaryMessage, data) }

func NewPingMessage(data []byte) Message { return NewMessage(PingMessage, data) }

func NewPongMessage(data []byte) Message { return NewMessage(PongMessage, data) }

func NewCloseFrame(code int, text []byte) CloseFrame {
	return CloseFrame{message: message{kind: CloseMessage, data: text}, Code: code}
}
