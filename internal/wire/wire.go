// Package wire encodes the messages exchanged by build ranks.
package wire

import (
	"bytes"
	"fmt"

	xdr "github.com/davecgh/go-xdr/xdr2"
	"github.com/go-sod/pkd/internal/byteutil"
	"github.com/go-sod/pkd/pkg/container/kdtree"
)

// Header announces the range a group is about to split: its length and the
// index of the median chosen by the owner.
type Header struct {
	Len    int32
	Median int32
}

type record struct {
	Split []float64
	Axis  int32
	Left  int32
	Right int32
}

type batch struct {
	Records []record
}

type scalar struct {
	Int   int64
	Float float64
}

func marshal(v interface{}) ([]byte, error) {
	buf := byteutil.GetBytesBuf()
	defer byteutil.PutBytesBuf(buf)
	if _, err := xdr.Marshal(buf, v); err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return byteutil.Detach(buf), nil
}

func unmarshal(data []byte, v interface{}) error {
	r := bytes.NewReader(data)
	if _, err := xdr.Unmarshal(r, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes: %w", r.Len(), ErrCorruptBlock)
	}
	return nil
}

func EncodeHeader(h Header) ([]byte, error) {
	return marshal(&h)
}

func DecodeHeader(data []byte) (Header, error) {
	var h Header
	err := unmarshal(data, &h)
	return h, err
}

func EncodeInt(v int) ([]byte, error) {
	return marshal(&scalar{Int: int64(v)})
}

func DecodeInt(data []byte) (int, error) {
	var s scalar
	err := unmarshal(data, &s)
	return int(s.Int), err
}

func EncodeFloat(v float64) ([]byte, error) {
	return marshal(&scalar{Float: v})
}

func DecodeFloat(data []byte) (float64, error) {
	var s scalar
	err := unmarshal(data, &s)
	return s.Float, err
}

// Codec encodes runs of tree records with an optional block compression.
type Codec struct {
	compression Compression
}

func NewCodec(c Compression) Codec {
	return Codec{compression: c}
}

func (c Codec) Compression() Compression {
	return c.compression
}

// EncodeRecords serialises the records in order, children included.
func (c Codec) EncodeRecords(nodes []kdtree.Node) ([]byte, error) {
	b := batch{Records: make([]record, len(nodes))}
	for i := range nodes {
		b.Records[i] = record{
			Split: nodes[i].Split,
			Axis:  int32(nodes[i].Axis),
			Left:  int32(nodes[i].Left),
			Right: int32(nodes[i].Right),
		}
	}
	data, err := marshal(&b)
	if err != nil {
		return nil, err
	}
	if c.compression == CompressionNone {
		return data, nil
	}
	return compressBlock(data, c.compression)
}

// DecodeRecords is the inverse of EncodeRecords.
func (c Codec) DecodeRecords(data []byte) ([]kdtree.Node, error) {
	if c.compression != CompressionNone {
		raw, err := decompressBlock(data, c.compression)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	var b batch
	if err := unmarshal(data, &b); err != nil {
		return nil, err
	}
	nodes := make([]kdtree.Node, len(b.Records))
	for i, r := range b.Records {
		nodes[i] = kdtree.Node{
			Split: r.Split,
			Axis:  int(r.Axis),
			Left:  int(r.Left),
			Right: int(r.Right),
		}
	}
	return nodes, nil
}
