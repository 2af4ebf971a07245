package scale

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxIdentifierLength bounds identifier strings on the wire, in characters.
const MaxIdentifierLength = 32767

var (
	// ErrStringTooLong is returned when a wire string exceeds its bound.
	ErrStringTooLong = errors.New("scale: wire string too long")
	// ErrMalformedString is returned for invalid UTF-8 or a bad length prefix.
	ErrMalformedString = errors.New("scale: malformed wire string")
)

// wireHeader is the fixed-order prefix of the wire encoding. Field order is
// the protocol; do not reorder.
type wireHeader struct {
	Scale      float32
	Previous   float32
	Initial    float32
	Target     float32
	Ticks      int32
	TotalTicks int32
	Modifiers  int32
}

// WriteWire encodes d in the big-endian wire format: four floats, the two
// tick counters, then a counted list of non-default modifier identifiers.
func (d *Data) WriteWire(w io.Writer, mods ModifierRegistry) error {
	if d == nil {
		return errors.New("scale: nil data")
	}
	ids := d.syncedModifierIDs(mods)
	header := wireHeader{
		Scale:      d.scale,
		Previous:   d.prevScale,
		Initial:    d.fromScale,
		Target:     d.toScale,
		Ticks:      d.scaleTicks,
		TotalTicks: d.totalTicks,
		Modifiers:  int32(len(ids)),
	}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return fmt.Errorf("write wire header: %w", err)
	}
	for _, id := range ids {
		if err := WriteString(w, id); err != nil {
			return fmt.Errorf("write modifier %q: %w", id, err)
		}
	}
	return nil
}

// MarshalWire returns the wire encoding of d.
func (d *Data) MarshalWire(mods ModifierRegistry) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteWire(&buf, mods); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWireDocument reads one wire-encoded state and converts it to the
// document form. The modifier list is omitted when the count is zero.
// Identifiers are carried through verbatim; resolution happens in
// FromDocument.
func DecodeWireDocument(r io.Reader) (Document, error) {
	var header wireHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return Document{}, fmt.Errorf("read wire header: %w", unexpectedEOF(err))
	}
	if header.Modifiers < 0 {
		return Document{}, fmt.Errorf("read wire header: negative modifier count %d", header.Modifiers)
	}
	doc := Document{
		Scale:      ptr(header.Scale),
		Previous:   ptr(header.Previous),
		Initial:    ptr(header.Initial),
		Target:     ptr(header.Target),
		Ticks:      ptr(header.Ticks),
		TotalTicks: ptr(header.TotalTicks),
	}
	if header.Modifiers == 0 {
		return doc, nil
	}
	br := AsByteReader(r)
	doc.BaseValueModifiers = make([]string, 0, min(int(header.Modifiers), 64))
	for i := int32(0); i < header.Modifiers; i++ {
		id, err := ReadString(br, MaxIdentifierLength)
		if err != nil {
			return Document{}, fmt.Errorf("read modifier %d: %w", i, err)
		}
		doc.BaseValueModifiers = append(doc.BaseValueModifiers, id)
	}
	return doc, nil
}

// ReadWire decodes a wire payload into d and returns the identifiers that
// could not be resolved.
func (d *Data) ReadWire(r io.Reader, mods ModifierRegistry) ([]string, error) {
	doc, err := DecodeWireDocument(r)
	if err != nil {
		return nil, err
	}
	return d.FromDocument(doc, mods), nil
}

// UnmarshalWire decodes payload into d.
func (d *Data) UnmarshalWire(payload []byte, mods ModifierRegistry) ([]string, error) {
	return d.ReadWire(bytes.NewReader(payload), mods)
}

// WriteString writes s as a varint byte length followed by UTF-8 bytes.
func WriteString(w io.Writer, s string) error {
	if utf8.RuneCountInString(s) > MaxIdentifierLength {
		return ErrStringTooLong
	}
	buf := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen32+len(s)), uint64(len(s)))
	buf = append(buf, s...)
	_, err := w.Write(buf)
	return err
}

// ReadString reads a string written by WriteString, rejecting more than
// maxChars characters.
func ReadString(r io.ByteReader, maxChars int) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", unexpectedEOF(err)
	}
	if n > uint64(maxChars)*4 {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}
	buf := make([]byte, n)
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return "", unexpectedEOF(err)
		}
		buf[i] = b
	}
	if !utf8.Valid(buf) {
		return "", ErrMalformedString
	}
	if utf8.RuneCount(buf) > maxChars {
		return "", fmt.Errorf("%w: %d characters", ErrStringTooLong, utf8.RuneCount(buf))
	}
	return string(buf), nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

type byteReader struct {
	r   io.Reader
	one [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.one[:]); err != nil {
		return 0, err
	}
	return b.one[0], nil
}

// AsByteReader returns r itself when it already reads single bytes.
func AsByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &byteReader{r: r}
}
