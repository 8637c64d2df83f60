package entity

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// FieldKind discriminates the variants of a FieldValue.
type FieldKind int

const (
	KindText FieldKind = iota
	KindInteger
	KindFloat
	KindBoolean
)

// FieldValue is a typed document field value. Exactly one of the value
// slots is meaningful, selected by Kind.
type FieldValue struct {
	Kind  FieldKind `msgpack:"kind"`
	Text  string    `msgpack:"text,omitempty"`
	Int   int64     `msgpack:"int,omitempty"`
	Float float64   `msgpack:"float,omitempty"`
	Bool  bool      `msgpack:"bool,omitempty"`
}

// Text constructs a text field value.
func Text(s string) FieldValue { return FieldValue{Kind: KindText, Text: s} }

// Integer constructs an integer field value.
func Integer(n int64) FieldValue { return FieldValue{Kind: KindInteger, Int: n} }

// Float constructs a float field value.
func Float(f float64) FieldValue { return FieldValue{Kind: KindFloat, Float: f} }

// Boolean constructs a boolean field value.
func Boolean(b bool) FieldValue { return FieldValue{Kind: KindBoolean, Bool: b} }

// AsText returns the string value and whether the field holds text.
func (v FieldValue) AsText() (string, bool) {
	return v.Text, v.Kind == KindText
}

// AsInt returns the integer value and whether the field holds an integer.
func (v FieldValue) AsInt() (int64, bool) {
	return v.Int, v.Kind == KindInteger
}

// AsFloat returns the float value and whether the field holds a float.
// Integer fields are widened to float64.
func (v FieldValue) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.Float, true
	case KindInteger:
		return float64(v.Int), true
	}
	return 0, false
}

// AsBool returns the boolean value and whether the field holds a boolean.
func (v FieldValue) AsBool() (bool, bool) {
	return v.Bool, v.Kind == KindBoolean
}

// Document is an immutable telemetry record. Fields is a mapping with
// unique keys; insertion order is irrelevant.
type Document struct {
	ID        NodeID                `msgpack:"id"`
	Timestamp time.Time             `msgpack:"timestamp"`
	EventType string                `msgpack:"event_type"`
	Fields    map[string]FieldValue `msgpack:"fields"`
}

// NewDocument creates a document with a fresh random ID and the given
// event type and timestamp (truncated to millisecond resolution, UTC).
func NewDocument(eventType string, ts time.Time, fields map[string]FieldValue) Document {
	if fields == nil {
		fields = make(map[string]FieldValue)
	}
	return Document{
		ID:        uuid.New(),
		Timestamp: ts.UTC().Truncate(time.Millisecond),
		EventType: eventType,
		Fields:    fields,
	}
}

// TextField returns the named field as a non-empty string, or "" when the
// field is missing, not text, or empty.
func (d Document) TextField(name string) string {
	v, ok := d.Fields[name]
	if !ok {
		return ""
	}
	s, ok := v.AsText()
	if !ok {
		return ""
	}
	return s
}

// FieldString renders the named field as a string regardless of its
// kind: text verbatim, numbers and booleans in their canonical form.
// Returns "" when the field is missing.
func (d Document) FieldString(name string) string {
	v, ok := d.Fields[name]
	if !ok {
		return ""
	}
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

// SegmentKey returns the calendar-day segment this document partitions
// into, derived from its timestamp in UTC.
func (d Document) SegmentKey() SegmentID {
	return d.Timestamp.UTC().Format("2006-01-02")
}

// Encode serializes the document with MessagePack.
func (d Document) Encode() ([]byte, error) {
	return msgpack.Marshal(d)
}

// DecodeDocument deserializes a MessagePack-encoded document.
func DecodeDocument(b []byte) (Document, error) {
	var d Document
	if err := msgpack.Unmarshal(b, &d); err != nil {
		return Document{}, err
	}
	return d, nil
}
