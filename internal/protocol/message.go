// Package protocol defines the wire message exchanged between the CLI
// client and the server (spec component C6): a CBOR-encoded sum type
// distinct from the on-disk record format in package record. Its shape
// mirrors the tagged enum the spec's reference client/server used
// (serde's `#[serde(tag = "t", content = "c")]`), carried over here as a
// small envelope struct plus a Go type switch instead of a generated
// enum.
package protocol

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Command names carried as the first element of an ArrayMessage request.
const (
	CmdGet    = "get"
	CmdSet    = "set"
	CmdRemove = "remove"
	CmdClear  = "clear"
)

// Message is either an ArrayMessage (a request, or a successful
// response) or an ErrorMessage (a failed response).
type Message interface {
	isMessage()
}

// ArrayMessage carries a command and its arguments as a request, or a
// result as a response. A Get response is a one-element array holding
// the value, or an empty array if the key was absent; Set and Remove
// responses are always empty.
type ArrayMessage struct {
	Values []string
}

func (ArrayMessage) isMessage() {}

// ErrorMessage reports that the peer's request failed. NotFound
// distinguishes a KeyNotFound failure from every other kind, so a client
// on the far side of the wire can still map it to the CLI's exit code 1
// without resorting to matching on Err's text.
type ErrorMessage struct {
	Err      string
	NotFound bool
}

func (ErrorMessage) isMessage() {}

const (
	tagArray = "a"
	tagError = "e"
)

type envelope struct {
	Tag     string          `cbor:"t"`
	Content cbor.RawMessage `cbor:"c"`
}

// errorContent is the CBOR shape of an ErrorMessage's envelope content.
type errorContent struct {
	Err      string `cbor:"e"`
	NotFound bool   `cbor:"n"`
}

// Marshal encodes m to its CBOR wire form.
func Marshal(m Message) ([]byte, error) {
	env, err := toEnvelope(m)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(env)
}

// Unmarshal decodes a Message previously produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return fromEnvelope(env)
}

// WriteMessage encodes m and writes it to w.
func WriteMessage(w io.Writer, m Message) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadMessage decodes exactly one Message from r, positioned at the
// start of a message. A clean end of stream is reported as io.EOF.
func ReadMessage(r io.Reader) (Message, error) {
	dec := cbor.NewDecoder(r)
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	return fromEnvelope(env)
}

func toEnvelope(m Message) (envelope, error) {
	switch v := m.(type) {
	case ArrayMessage:
		content, err := cbor.Marshal(v.Values)
		if err != nil {
			return envelope{}, err
		}
		return envelope{Tag: tagArray, Content: content}, nil
	case ErrorMessage:
		content, err := cbor.Marshal(errorContent{Err: v.Err, NotFound: v.NotFound})
		if err != nil {
			return envelope{}, err
		}
		return envelope{Tag: tagError, Content: content}, nil
	default:
		return envelope{}, fmt.Errorf("protocol: unknown message type %T", m)
	}
}

func fromEnvelope(env envelope) (Message, error) {
	switch env.Tag {
	case tagArray:
		var values []string
		if err := cbor.Unmarshal(env.Content, &values); err != nil {
			return nil, err
		}
		return ArrayMessage{Values: values}, nil
	case tagError:
		var ec errorContent
		if err := cbor.Unmarshal(env.Content, &ec); err != nil {
			return nil, err
		}
		return ErrorMessage{Err: ec.Err, NotFound: ec.NotFound}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown message tag %q", env.Tag)
	}
}
