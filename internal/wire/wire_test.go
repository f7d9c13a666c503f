package wire

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/go-sod/pkd/internal/geom"
	"github.com/go-sod/pkd/pkg/container/kdtree"
)

func annotated(n int) []kdtree.Node {
	nodes := make([]kdtree.Node, n)
	for i := range nodes {
		nodes[i] = kdtree.Node{
			Split: geom.Point{float64(i % 3), 0.5, float64(i) / 4},
			Axis:  i % 3,
			Left:  i - 1,
			Right: kdtree.None,
		}
	}
	return nodes
}

func TestCodec_Records(t *testing.T) {
	tests := []struct {
		name        string
		compression Compression
		n           int
	}{
		{name: "plain", compression: CompressionNone, n: 17},
		{name: "lz4", compression: CompressionLZ4, n: 2048},
		{name: "zstd", compression: CompressionZSTD, n: 2048},
		{name: "lz4_tiny", compression: CompressionLZ4, n: 1},
		{name: "empty", compression: CompressionZSTD, n: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			codec := NewCodec(test.compression)
			nodes := annotated(test.n)
			data, err := codec.EncodeRecords(nodes)
			if err != nil {
				t.Fatalf("encode error: %v", err)
			}
			got, err := codec.DecodeRecords(data)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if len(got) != len(nodes) {
				t.Fatalf("decoded records got: %d, expected: %d", len(got), len(nodes))
			}
			for i := range nodes {
				if !got[i].Split.Equal(nodes[i].Split) || got[i].Axis != nodes[i].Axis ||
					got[i].Left != nodes[i].Left || got[i].Right != nodes[i].Right {
					t.Fatalf("record %d got: %+v, expected: %+v", i, got[i], nodes[i])
				}
			}
		})
	}
}

func TestCodec_Compresses(t *testing.T) {
	nodes := annotated(4096)
	plain, err := NewCodec(CompressionNone).EncodeRecords(nodes)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		packed, err := NewCodec(c).EncodeRecords(nodes)
		if err != nil {
			t.Fatalf("%s encode error: %v", c, err)
		}
		if len(packed) >= len(plain) {
			t.Errorf("%s block got: %d bytes, plain: %d bytes", c, len(packed), len(plain))
		}
		if binary.LittleEndian.Uint32(packed[4:]) == 0 {
			t.Errorf("%s block must be stored packed", c)
		}
	}
}

func TestCodec_Corrupt(t *testing.T) {
	codec := NewCodec(CompressionLZ4)
	data, err := codec.EncodeRecords(annotated(512))
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	tests := []struct {
		name string
		data []byte
	}{
		{name: "short", data: data[:4]},
		{name: "truncated", data: data[:len(data)-3]},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := codec.DecodeRecords(test.data); !errors.Is(err, ErrCorruptBlock) {
				t.Errorf("decode error got: %v, expected: %v", err, ErrCorruptBlock)
			}
		})
	}
}

func TestHeader(t *testing.T) {
	data, err := EncodeHeader(Header{Len: 9, Median: 4})
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	h, err := DecodeHeader(data)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(h, Header{Len: 9, Median: 4}) {
		t.Errorf("header got: %+v", h)
	}
	if _, err := DecodeHeader(data[:3]); err == nil {
		t.Errorf("a truncated header must not decode")
	}
}

func TestScalars(t *testing.T) {
	id, err := EncodeInt(-1)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if v, err := DecodeInt(id); err != nil || v != kdtree.None {
		t.Errorf("int got: %d, %v, expected: %d", v, err, kdtree.None)
	}
	f, err := EncodeFloat(0.25)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if v, err := DecodeFloat(f); err != nil || v != 0.25 {
		t.Errorf("float got: %v, %v, expected: %v", v, err, 0.25)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in       string
		expected Compression
		err      bool
	}{
		{in: "", expected: CompressionNone},
		{in: "LZ4", expected: CompressionLZ4},
		{in: "zstd", expected: CompressionZSTD},
		{in: "gzip", err: true},
	}
	for _, test := range tests {
		got, err := ParseCompression(test.in)
		if (err != nil) != test.err || got != test.expected {
			t.Errorf("parse %q got: %v, %v, expected: %v", test.in, got, err, test.expected)
		}
	}
}
