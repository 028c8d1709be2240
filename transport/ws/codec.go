package ws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kuredoro/snake_duel/core"
)

// Codec turns protocol envelopes into websocket frames. The msgpack codec
// reuses the json field names so both wire formats carry the same keys.
type Codec interface {
	Name() string
	MessageType() int
	Encode(msg core.ServerMessage) ([]byte, error)
	Decode(data []byte, msg *core.ClientMessage) error
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName resolves the ?codec= query parameter. An empty name means json.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	}

	return nil, fmt.Errorf("unknown codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) MessageType() int {
	return websocket.TextMessage
}

func (jsonCodec) Encode(msg core.ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Decode(data []byte, msg *core.ClientMessage) error {
	return json.Unmarshal(data, msg)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string {
	return "msgpack"
}

func (msgpackCodec) MessageType() int {
	return websocket.BinaryMessage
}

func (msgpackCodec) Encode(msg core.ServerMessage) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(data []byte, msg *core.ClientMessage) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(msg)
}
