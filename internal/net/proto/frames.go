package proto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/MerchantPug/Pehkui/scale"
)

// MaxEntityIDLength bounds entity identifiers inside sync frames.
const MaxEntityIDLength = 256

var (
	ErrUnsupportedVersion = errors.New("proto: unsupported frame version")
	ErrEmptyFrame         = errors.New("proto: empty frame")
)

// SyncFrame carries the wire-encoded state of one (entity, scale type)
// pair. Payload is the scale wire encoding.
type SyncFrame struct {
	Entity    string
	ScaleType string
	Payload   []byte
}

// EncodeSyncFrame renders frame as [version][entity][scale type][payload].
func EncodeSyncFrame(frame SyncFrame) ([]byte, error) {
	if frame.Entity == "" || frame.ScaleType == "" {
		return nil, fmt.Errorf("%w: missing entity or scale type", ErrEmptyFrame)
	}
	var buf bytes.Buffer
	buf.Grow(1 + len(frame.Entity) + len(frame.ScaleType) + len(frame.Payload) + 4)
	buf.WriteByte(Version)
	if err := scale.WriteString(&buf, frame.Entity); err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	if err := scale.WriteString(&buf, frame.ScaleType); err != nil {
		return nil, fmt.Errorf("encode scale type: %w", err)
	}
	buf.Write(frame.Payload)
	return buf.Bytes(), nil
}

// DecodeSyncFrame parses a frame produced by EncodeSyncFrame. The returned
// payload aliases data.
func DecodeSyncFrame(data []byte) (SyncFrame, error) {
	if len(data) == 0 {
		return SyncFrame{}, ErrEmptyFrame
	}
	if data[0] != Version {
		return SyncFrame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[0])
	}
	r := bytes.NewReader(data[1:])
	entity, err := scale.ReadString(r, MaxEntityIDLength)
	if err != nil {
		return SyncFrame{}, fmt.Errorf("decode entity: %w", err)
	}
	scaleType, err := scale.ReadString(r, scale.MaxIdentifierLength)
	if err != nil {
		return SyncFrame{}, fmt.Errorf("decode scale type: %w", err)
	}
	if entity == "" || scaleType == "" {
		return SyncFrame{}, fmt.Errorf("%w: missing entity or scale type", ErrEmptyFrame)
	}
	offset := len(data) - r.Len()
	return SyncFrame{Entity: entity, ScaleType: scaleType, Payload: data[offset:]}, nil
}
