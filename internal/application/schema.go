package application

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/taskplanner/internal/persistence"
)

// FieldKind is the value type a schema field accepts.
type FieldKind int

const (
	KindString FieldKind = iota
	KindText
	KindInt
	KindBool
	KindDatetime
	KindEmail
	KindEnum
	// KindTags accepts a string or a list of strings and stores them comma-joined.
	KindTags
)

// Field declares one recognised field of an entity.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Min is the lower bound of an integer field when HasMin is set.
	Min    int64
	HasMin bool
	MinLen int
	MaxLen int
	Enum   []string
	// Default is applied on create when the field is absent or null.
	Default any
}

// Mode selects create or partial-update validation.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// Schema is the typed boundary in front of the untyped record store.
type Schema struct {
	Entity string
	Fields []Field
	// Freeform schemas accept any JSON object.
	Freeform bool
	// Check runs cross-field rules against the record as it will be stored.
	// On create that is the normalised payload; on update the merged record.
	Check func(rec persistence.Record, v *ValidationError)
}

// Validate normalises payload for the given mode. Unknown fields are dropped,
// and store-managed fields are never accepted from callers.
func (s *Schema) Validate(payload map[string]any, mode Mode) (persistence.Record, error) {
	out := make(persistence.Record, len(payload))
	if s.Freeform {
		for key, value := range payload {
			switch key {
			case persistence.FieldID, persistence.FieldCreatedAt, persistence.FieldUpdatedAt:
				continue
			}
			out[key] = value
		}
		return out, nil
	}

	vErr := &ValidationError{}
	for _, field := range s.Fields {
		raw, present := payload[field.Name]

		var value any
		if present && raw != nil {
			normalised, msg := field.normalise(raw)
			if msg != "" {
				vErr.add(field.Name, msg)
				continue
			}
			value = normalised
		}
		if value != nil {
			out[field.Name] = value
			continue
		}

		// Absent, null or blank.
		switch {
		case mode == ModeCreate && field.Required:
			vErr.add(field.Name, "is required")
		case mode == ModeCreate && field.Default != nil:
			out[field.Name] = field.Default
		case mode == ModeUpdate && present && field.Required:
			vErr.add(field.Name, "must not be empty")
		case mode == ModeUpdate && present:
			out[field.Name] = nil
		}
	}

	if mode == ModeCreate && s.Check != nil && !vErr.HasErrors() {
		s.Check(out, vErr)
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	return out, nil
}

// CheckMerged runs the cross-field rules against an update merged with the
// stored record.
func (s *Schema) CheckMerged(existing, changes persistence.Record) error {
	if s.Check == nil {
		return nil
	}
	merged := existing.Clone()
	for key, value := range changes {
		merged[key] = value
	}
	vErr := &ValidationError{}
	s.Check(merged, vErr)
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// normalise converts a raw JSON value. A nil value with an empty message
// means the input was blank.
func (f Field) normalise(raw any) (any, string) {
	switch f.Kind {
	case KindString, KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return nil, ""
		}
		if msg := f.checkLength(s); msg != "" {
			return nil, msg
		}
		return s, ""

	case KindInt:
		if _, isString := raw.(string); isString {
			return nil, "must be an integer"
		}
		n, ok := persistence.AsInt64(raw)
		if !ok {
			return nil, "must be an integer"
		}
		if f.HasMin && n < f.Min {
			return nil, fmt.Sprintf("must be at least %d", f.Min)
		}
		return n, ""

	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, "must be a boolean"
		}
		return b, ""

	case KindDatetime:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a datetime string"
		}
		if strings.TrimSpace(s) == "" {
			return nil, ""
		}
		t, err := ParseDatetime(s)
		if err != nil {
			return nil, "must be a valid datetime"
		}
		return FormatDatetime(t), ""

	case KindEmail:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, ""
		}
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s {
			return nil, "must be a valid email address"
		}
		return s, ""

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		s = strings.ToLower(strings.TrimSpace(s))
		for _, allowed := range f.Enum {
			if s == allowed {
				return s, ""
			}
		}
		return nil, "must be one of: " + strings.Join(f.Enum, ", ")

	case KindTags:
		switch v := raw.(type) {
		case string:
			return v, ""
		case []any:
			tags := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, "must be a list of strings"
				}
				if s = strings.TrimSpace(s); s != "" {
					tags = append(tags, s)
				}
			}
			return strings.Join(tags, ","), ""
		case []string:
			return strings.Join(v, ","), ""
		default:
			return nil, "must be a string or a list of strings"
		}
	}
	return nil, "unsupported field type"
}

func (f Field) checkLength(s string) string {
	n := utf8.RuneCountInString(s)
	if f.MinLen > 0 && n < f.MinLen {
		return fmt.Sprintf("must be at least %d characters", f.MinLen)
	}
	if f.MaxLen > 0 && n > f.MaxLen {
		return fmt.Sprintf("must be at most %d characters", f.MaxLen)
	}
	return ""
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDatetime accepts RFC 3339, a naive ISO date-time (read as UTC) or a bare date.
func ParseDatetime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", value)
}

// FormatDatetime renders t the way datetime fields are stored.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
