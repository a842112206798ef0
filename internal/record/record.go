// Package record implements the log's command codec (spec component C1):
// a self-delimiting CBOR encoding for the two command variants, Set and
// Remove, that make up the append-only log.
package record

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Kind distinguishes the two command variants stored in the log.
type Kind uint8

const (
	// Set stores a key/value pair.
	Set Kind = iota
	// Remove deletes a key (a tombstone).
	Remove
)

// Record is one decoded log command. Value is empty for Remove; it is
// always present (possibly empty-string) in the wire form so that two
// identically-valued records encode to the same byte length, as spec
// section 4.1 requires.
type Record struct {
	Kind  Kind
	Key   string
	Value string
}

// wire is the on-the-wire CBOR shape. Field order is fixed by struct
// declaration order, which is what gives re-encoding of an identical
// Record a stable byte length.
type wire struct {
	Op    uint8  `cbor:"o"`
	Key   string `cbor:"k"`
	Value string `cbor:"v"`
}

func toWire(r Record) wire {
	return wire{Op: uint8(r.Kind), Key: r.Key, Value: r.Value}
}

func (w wire) toRecord() Record {
	return Record{Kind: Kind(w.Op), Key: w.Key, Value: w.Value}
}

// Marshal encodes a single record to its self-delimiting CBOR byte form.
func Marshal(r Record) ([]byte, error) {
	return cbor.Marshal(toWire(r))
}

// DecodeOne decodes exactly one record out of a byte slice that holds
// exactly its encoded bytes (the common case: a slice read via the index's
// (start, end) offsets). It is an error for trailing bytes to remain.
func DecodeOne(data []byte) (Record, error) {
	var w wire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Record{}, err
	}
	return w.toRecord(), nil
}

// Decoder decodes a sequence of back-to-back records from a stream,
// reporting the exact number of bytes each record occupied so callers can
// track log offsets without a length prefix.
type Decoder struct {
	dec *cbor.Decoder
}

// NewDecoder wraps r for sequential record-by-record decoding. r must be
// positioned at a record boundary (e.g. offset 0, or right after a prior
// Next call).
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: cbor.NewDecoder(r)}
}

// Next decodes exactly one record and returns its encoded length in bytes.
// A clean end of stream at a record boundary is reported as io.EOF; any
// other failure (including a truncated record) is returned as-is and the
// caller should treat it as log corruption.
func (d *Decoder) Next() (Record, int64, error) {
	before := d.dec.NumBytesRead()

	var w wire
	if err := d.dec.Decode(&w); err != nil {
		if err == io.EOF {
			return Record{}, 0, io.EOF
		}
		return Record{}, 0, err
	}

	n := int64(d.dec.NumBytesRead() - before)
	return w.toRecord(), n, nil
}
