package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"time"
)

// Record field names managed by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Record is one persisted item. The store keeps it untyped; entity schemas
// enforce shape before records reach it.
type Record map[string]any

// ID returns the record identifier when it holds an integral value.
func (r Record) ID() (int64, bool) {
	return AsInt64(r[FieldID])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// String returns the field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Bool returns the field as a bool, or fallback when absent or not a bool.
func (r Record) Bool(field string, fallback bool) bool {
	b, ok := r[field].(bool)
	if !ok {
		return fallback
	}
	return b
}

// AsInt64 converts the numeric representations produced by encoding/json and
// by callers into an int64. Fractional values are rejected.
func AsInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Timestamp formats t the way the store persists lifecycle timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DecodeRecords decodes a JSON array of objects, keeping numbers as
// json.Number and normalising ids to int64.
func DecodeRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if rec == nil {
			continue
		}
		normaliseID(rec)
		out = append(out, rec)
	}
	return out, nil
}

// DecodeRecord decodes a single JSON object the same way as DecodeRecords.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("persistence: record is null")
	}
	normaliseID(rec)
	return rec, nil
}

// Canonical returns rec exactly as it reads back after being persisted.
func Canonical(rec Record) (Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("persistence: encode record: %w", err)
	}
	return DecodeRecord(data)
}

// NextID returns the identifier following both the persisted counter and every
// live id, so identifiers are never reused after deletions.
func NextID(counter int64, records []Record) int64 {
	highest := counter
	for _, rec := range records {
		if id, ok := rec.ID(); ok && id > highest {
			highest = id
		}
	}
	return highest + 1
}

// Merge applies a partial update to existing, leaving store-managed fields alone.
func Merge(existing, fields Record, updatedAt string) Record {
	merged := existing.Clone()
	for key, value := range fields {
		switch key {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		merged[key] = value
	}
	merged[FieldUpdatedAt] = updatedAt
	return merged
}

// Stamp prepares a new record with its id and lifecycle timestamps.
func Stamp(fields Record, id int64, now string) Record {
	rec := make(Record, len(fields)+3)
	for key, value := range fields {
		rec[key] = value
	}
	rec[FieldID] = id
	rec[FieldCreatedAt] = now
	rec[FieldUpdatedAt] = now
	return rec
}

func normaliseID(rec Record) {
	if id, ok := AsInt64(rec[FieldID]); ok {
		rec[FieldID] = id
	}
}
