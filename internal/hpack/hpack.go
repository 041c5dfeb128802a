// Package hpack implements RFC 7541 HTTP/2 header compression: a static
// table, a bounded dynamic table with LRU-by-insertion eviction, the
// prefix-integer and (optional on the wire, always understood) Huffman
// string codecs, and an Encoder/Decoder pair each owning an independent
// dynamic table, per spec §4.2 / §5 (HPACK tables are per-connection).
//
// Grounded on dgrr-http2's headers.go/headerField.go field model; the
// dynamic table and encode/decode state machine are rebuilt in full since
// the retrieved teacher snapshot only carried a partial prototype.
package hpack

import (
	"errors"

	"github.com/valyala/bytebufferpool"
)

var (
	ErrIndexOutOfRange    = errors.New("hpack: index out of range")
	ErrTableSizeExceeded  = errors.New("hpack: dynamic table size update exceeds negotiated maximum")
	ErrIncompleteField    = errors.New("hpack: incomplete header field representation")
)

// representation prefix patterns (RFC 7541 §6).
const (
	maskIndexed          = 0x80 // 1xxxxxxx
	maskLiteralIncr      = 0xC0 // 01xxxxxx (prefix 6 bits)
	patternLiteralIncr   = 0x40
	maskLiteralNoIndex   = 0xF0 // 0000xxxx (prefix 4 bits)
	patternLiteralNoIdx  = 0x00
	patternLiteralNever  = 0x10
	maskTableSizeUpdate  = 0xE0 // 001xxxxx (prefix 5 bits)
	patternTableSizeUpd  = 0x20
)

// Encoder encodes header fields against its own dynamic table.
type Encoder struct {
	table *DynamicTable
}

func NewEncoder() *Encoder {
	return &Encoder{table: NewDynamicTable()}
}

func (e *Encoder) SetMaxTableSize(n int) { e.table.SetMaxSize(n) }
func (e *Encoder) TableSize() int        { return e.table.Size() }

// EncodeField appends the HPACK representation of f to dst.
//
// Lookup order: exact (name,value) match -> indexed representation.
// Name-only match -> literal with indexed name. No match -> literal with
// literal name. Sensitive fields use the never-indexed literal form; fields
// larger than the table's max size are emitted without indexing (RFC 7541
// §4.1); everything else uses incremental indexing so later references can
// be compressed.
func (e *Encoder) EncodeField(dst []byte, f HeaderField) []byte {
	idx, full, found := e.table.find(f)
	if found && full {
		dst = appendInt(dst, 7, maskIndexed, idx)
		return dst
	}

	fitsTable := f.Size() <= e.table.maxSize
	neverIndex := f.Sensitive

	switch {
	case neverIndex:
		dst = appendInt(dst, 4, patternLiteralNever, indexOrZero(found, idx))
	case fitsTable:
		dst = appendInt(dst, 6, patternLiteralIncr, indexOrZero(found, idx))
	default:
		dst = appendInt(dst, 4, patternLiteralNoIdx, indexOrZero(found, idx))
	}

	if !found {
		dst = appendString(dst, f.Name)
	}
	dst = appendString(dst, f.Value)

	if fitsTable && !neverIndex {
		e.table.Insert(f)
	}

	return dst
}

func indexOrZero(found bool, idx uint64) uint64 {
	if !found {
		return 0
	}
	return idx
}

// appendString encodes s as an HPACK string literal, Huffman-coding it
// whenever that is shorter than the raw bytes (RFC 7541 §5.2 leaves the
// choice to the encoder).
func appendString(dst []byte, s string) []byte {
	b := []byte(s)
	huffLen := huffmanEncodedLen(b)
	if huffLen < len(b) {
		dst = appendInt(dst, 7, 0x80, uint64(huffLen))
		return huffmanEncode(dst, b)
	}
	dst = appendInt(dst, 7, 0x00, uint64(len(b)))
	return append(dst, b...)
}

// Decoder decodes header blocks against its own dynamic table.
type Decoder struct {
	table      *DynamicTable
	negotiated int // the connection-negotiated SETTINGS_HEADER_TABLE_SIZE ceiling
}

func NewDecoder() *Decoder {
	return &Decoder{table: NewDynamicTable(), negotiated: DefaultMaxTableSize}
}

// SetNegotiatedMaxSize records the ceiling a dynamic-table-size-update may
// not exceed (the value this endpoint advertised via SETTINGS).
func (d *Decoder) SetNegotiatedMaxSize(n int) {
	d.negotiated = n
	if d.table.maxSize > n {
		d.table.SetMaxSize(n)
	}
}

func (d *Decoder) TableSize() int { return d.table.Size() }

// DecodeBlock decodes a full header block (already reassembled from
// HEADERS+CONTINUATION frames) into a slice of fields, preserving order.
func (d *Decoder) DecodeBlock(block []byte) ([]HeaderField, error) {
	var fields []HeaderField

	for len(block) > 0 {
		c := block[0]

		switch {
		case c&maskIndexed == maskIndexed:
			idx, rest, err := readInt(7, block)
			if err != nil {
				return nil, err
			}
			f, err := d.lookup(idx)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			block = rest

		case c&maskLiteralIncr == patternLiteralIncr:
			f, rest, err := d.readLiteral(6, block)
			if err != nil {
				return nil, err
			}
			d.table.Insert(f)
			fields = append(fields, f)
			block = rest

		case c&maskTableSizeUpdate == patternTableSizeUpd:
			sz, rest, err := readInt(5, block)
			if err != nil {
				return nil, err
			}
			if int(sz) > d.negotiated {
				return nil, ErrTableSizeExceeded
			}
			d.table.SetMaxSize(int(sz))
			block = rest

		case c&0xF0 == patternLiteralNever:
			f, rest, err := d.readLiteral(4, block)
			if err != nil {
				return nil, err
			}
			f.Sensitive = true
			fields = append(fields, f)
			block = rest

		default: // literal without indexing, 4-bit prefix, pattern 0000xxxx
			f, rest, err := d.readLiteral(4, block)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			block = rest
		}
	}

	return fields, nil
}

func (d *Decoder) lookup(idx uint64) (HeaderField, error) {
	if idx == 0 {
		return HeaderField{}, ErrIndexOutOfRange
	}
	if int(idx) <= staticTableSize {
		return staticTable[idx-1], nil
	}
	if f, ok := d.table.Get(int(idx) - staticTableSize); ok {
		return f, nil
	}
	return HeaderField{}, ErrIndexOutOfRange
}

func (d *Decoder) readLiteral(prefixBits uint8, block []byte) (HeaderField, []byte, error) {
	idx, rest, err := readInt(prefixBits, block)
	if err != nil {
		return HeaderField{}, nil, err
	}

	var name string
	if idx == 0 {
		n, r, err := readString(rest)
		if err != nil {
			return HeaderField{}, nil, err
		}
		name = n
		rest = r
	} else {
		f, err := d.lookup(idx)
		if err != nil {
			return HeaderField{}, nil, err
		}
		name = f.Name
	}

	value, rest, err := readString(rest)
	if err != nil {
		return HeaderField{}, nil, err
	}

	return HeaderField{Name: name, Value: value}, rest, nil
}

func readString(b []byte) (string, []byte, error) {
	if len(b) == 0 {
		return "", b, ErrTruncated
	}
	huffman := b[0]&0x80 != 0
	length, rest, err := readInt(7, b)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < length {
		return "", nil, ErrTruncated
	}
	raw := rest[:length]
	rest = rest[length:]

	if !huffman {
		return string(raw), rest, nil
	}

	// Huffman-decoded literals are scratch: decode into a pooled buffer and
	// copy out the final string, instead of letting huffmanDecode grow a
	// fresh slice per call.
	bb := bytebufferpool.Get()
	decoded, err := huffmanDecode(bb.B[:0], raw)
	if err != nil {
		bytebufferpool.Put(bb)
		return "", nil, err
	}
	bb.B = decoded
	s := string(bb.B)
	bytebufferpool.Put(bb)
	return s, rest, nil
}
