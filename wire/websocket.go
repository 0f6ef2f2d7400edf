package wire

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Sender sends a message over an established connection and returns the
// number of bytes written.
type Sender func(Msg) (int, error)

// Receiver receives the next message and the number of bytes read.
type Receiver func() (Msg, int, error)

// ResponseSender sends messages back to the client a handler serves. Send
// encodes a payload struct; SendMsg forwards an already encoded message.
type ResponseSender interface {
	Send(v any)
	SendMsg(Msg)
}

// Send writes a message as one websocket frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if err := websocket.Message.Send(conn, msg.Data); err != nil {
		return 0, errors.New("writing websocket frame failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}
	return len(msg.Data), nil
}

// Receive reads the next websocket frame and routes it by its type tag.
// Unknown types are passed through for handlers to skip.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	var base baseMsg
	if err := json.Unmarshal(data, &base); err != nil {
		return Msg{}, len(data), errors.New("decoding websocket frame failed").Wrap(err)
	}

	return Msg{Type: base.Type, Data: data}, len(data), nil
}
