package feature

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"google.golang.org/protobuf/encoding/protowire"
)

// ContentType is the media type of the binary payloads.
const ContentType = "application/x-protobuf"

// ErrTruncated is returned when a payload ends inside a field.
var ErrTruncated = errors.New("truncated payload")

// Field numbers of RenderElementsData and RenderNotesData.
const (
	elementsNodes       protowire.Number = 1
	elementsWays        protowire.Number = 2
	elementsTooMuchData protowire.Number = 3

	notesNotes       protowire.Number = 1
	notesTooMuchData protowire.Number = 2

	nodeID       protowire.Number = 1
	nodeLocation protowire.Number = 2

	wayID   protowire.Number = 1
	wayLine protowire.Number = 2
	wayArea protowire.Number = 3

	noteID       protowire.Number = 1
	noteLocation protowire.Number = 2
	noteOpen     protowire.Number = 3
	noteText     protowire.Number = 4

	lonLatLon protowire.Number = 1
	lonLatLat protowire.Number = 2
)

// MarshalElements encodes the nodes and ways of c as RenderElementsData.
// Notes in c are not part of this message and are skipped.
func MarshalElements(c Collection) []byte {
	var b []byte
	for _, f := range c.Features {
		if n, ok := f.(Node); ok {
			var m []byte
			m = appendVarintField(m, nodeID, uint64(n.ID))
			m = appendBytesField(m, nodeLocation, appendLonLat(nil, n.Point))
			b = appendBytesField(b, elementsNodes, m)
		}
	}
	for _, f := range c.Features {
		if w, ok := f.(Way); ok {
			var m []byte
			m = appendVarintField(m, wayID, uint64(w.ID))
			m = protowire.AppendTag(m, wayLine, protowire.BytesType)
			m = protowire.AppendString(m, EncodePolyline(w.Line))
			if w.Area {
				m = appendVarintField(m, wayArea, 1)
			}
			b = appendBytesField(b, elementsWays, m)
		}
	}
	if c.TooMuchData {
		b = appendVarintField(b, elementsTooMuchData, 1)
	}
	return b
}

// MarshalNotes encodes the notes of c as RenderNotesData.
func MarshalNotes(c Collection) []byte {
	var b []byte
	for _, f := range c.Features {
		n, ok := f.(Note)
		if !ok {
			continue
		}
		var m []byte
		m = appendVarintField(m, noteID, uint64(n.ID))
		m = appendBytesField(m, noteLocation, appendLonLat(nil, n.Point))
		if n.Open {
			m = appendVarintField(m, noteOpen, 1)
		}
		if n.Text != "" {
			m = protowire.AppendTag(m, noteText, protowire.BytesType)
			m = protowire.AppendString(m, n.Text)
		}
		b = appendBytesField(b, notesNotes, m)
	}
	if c.TooMuchData {
		b = appendVarintField(b, notesTooMuchData, 1)
	}
	return b
}

// UnmarshalElements decodes RenderElementsData. Nodes precede ways in the result.
func UnmarshalElements(b []byte) (Collection, error) {
	var c Collection
	var ways []Feature
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == elementsNodes && typ == protowire.BytesType:
			n, err := unmarshalNode(v)
			if err != nil {
				return fmt.Errorf("node: %w", err)
			}
			c.Features = append(c.Features, n)
		case num == elementsWays && typ == protowire.BytesType:
			w, err := unmarshalWay(v)
			if err != nil {
				return fmt.Errorf("way: %w", err)
			}
			ways = append(ways, w)
		case num == elementsTooMuchData && typ == protowire.VarintType:
			c.TooMuchData = protowire.DecodeBool(x)
		}
		return nil
	})
	if err != nil {
		return Collection{}, err
	}
	c.Features = append(c.Features, ways...)
	return c, nil
}

// UnmarshalNotes decodes RenderNotesData.
func UnmarshalNotes(b []byte) (Collection, error) {
	var c Collection
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == notesNotes && typ == protowire.BytesType:
			n, err := unmarshalNote(v)
			if err != nil {
				return fmt.Errorf("note: %w", err)
			}
			c.Features = append(c.Features, n)
		case num == notesTooMuchData && typ == protowire.VarintType:
			c.TooMuchData = protowire.DecodeBool(x)
		}
		return nil
	})
	if err != nil {
		return Collection{}, err
	}
	return c, nil
}

func unmarshalNode(b []byte) (Node, error) {
	var n Node
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == nodeID && typ == protowire.VarintType:
			n.ID = int64(x)
		case num == nodeLocation && typ == protowire.BytesType:
			p, err := unmarshalLonLat(v)
			if err != nil {
				return err
			}
			n.Point = p
		}
		return nil
	})
	return n, err
}

func unmarshalWay(b []byte) (Way, error) {
	var w Way
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == wayID && typ == protowire.VarintType:
			w.ID = int64(x)
		case num == wayLine && typ == protowire.BytesType:
			line, err := DecodePolyline(string(v))
			if err != nil {
				return err
			}
			w.Line = line
		case num == wayArea && typ == protowire.VarintType:
			w.Area = protowire.DecodeBool(x)
		}
		return nil
	})
	return w, err
}

func unmarshalNote(b []byte) (Note, error) {
	var n Note
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == noteID && typ == protowire.VarintType:
			n.ID = int64(x)
		case num == noteLocation && typ == protowire.BytesType:
			p, err := unmarshalLonLat(v)
			if err != nil {
				return err
			}
			n.Point = p
		case num == noteOpen && typ == protowire.VarintType:
			n.Open = protowire.DecodeBool(x)
		case num == noteText && typ == protowire.BytesType:
			n.Text = string(v)
		}
		return nil
	})
	return n, err
}

func unmarshalLonLat(b []byte) (orb.Point, error) {
	var p orb.Point
	err := eachField(b, func(num protowire.Number, typ protowire.Type, _ []byte, x uint64) error {
		if typ != protowire.Fixed64Type {
			return nil
		}
		switch num {
		case lonLatLon:
			p[0] = math.Float64frombits(x)
		case lonLatLat:
			p[1] = math.Float64frombits(x)
		}
		return nil
	})
	return p, err
}

func appendLonLat(b []byte, p orb.Point) []byte {
	b = protowire.AppendTag(b, lonLatLon, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(p.Lon()))
	b = protowire.AppendTag(b, lonLatLat, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(p.Lat()))
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// eachField walks the top-level fields of a message. Length-delimited values
// arrive in v; varint and fixed values arrive in x. Fields the callback does
// not recognize are skipped.
func eachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]

		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			x, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var x32 uint32
			x32, n = protowire.ConsumeFixed32(b)
			x = uint64(x32)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]

		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

func wireError(n int) error {
	return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
}
