package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind classifies how a field value is interpreted and validated.
type Kind string

const (
	KindText     Kind = "text"
	KindDate     Kind = "date"
	KindAmount   Kind = "amount"
	KindCurrency Kind = "currency"
	KindEnum     Kind = "enum"
	KindYesNo    Kind = "yes_no"
)

const (
	Yes = "yes"
	No  = "no"

	dateLayout = "2006-01-02"
)

// ErrIncomplete is wrapped by ValidationError when required values are absent.
var ErrIncomplete = errors.New("schema: incomplete dispute fields")

// Field describes one attribute of a dispute.
type Field struct {
	Name        string
	Label       string
	Description string
	Kind        Kind
	Required    bool
	// GatedBy names a yes/no field; when that flag is "yes" this field is
	// required even if Required is false.
	GatedBy string
	Options []string
}

// Schema is an ordered, validated set of fields.
type Schema struct {
	fields []Field
	byName map[string]int
}

// New builds a schema, rejecting duplicate names and gates that do not point
// at an earlier-declared yes/no field.
func New(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema: field without name")
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		if f.Kind == KindEnum && len(f.Options) == 0 {
			return nil, fmt.Errorf("schema: enum field %q has no options", f.Name)
		}
		if f.GatedBy != "" {
			idx, ok := s.byName[f.GatedBy]
			if !ok {
				return nil, fmt.Errorf("schema: field %q gated by unknown field %q", f.Name, f.GatedBy)
			}
			if s.fields[idx].Kind != KindYesNo {
				return nil, fmt.Errorf("schema: field %q gated by non yes/no field %q", f.Name, f.GatedBy)
			}
		}
		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is New for package-level declarations.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the declared fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[idx], true
}

// Normalize trims values, canonicalises yes/no flags and currency codes and
// drops keys the schema does not declare.
func (s *Schema) Normalize(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for name, raw := range values {
		f, ok := s.Field(name)
		if !ok {
			continue
		}
		v := strings.TrimSpace(raw)
		switch f.Kind {
		case KindYesNo:
			v = normalizeYesNo(v)
		case KindCurrency:
			v = strings.ToUpper(v)
		case KindEnum:
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		out[name] = v
	}
	return out
}

// RequiredFor returns the names of fields that must be present for the given
// values, in declaration order.
func (s *Schema) RequiredFor(values map[string]string) []string {
	out := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		if f.Required || (f.GatedBy != "" && normalizeYesNo(values[f.GatedBy]) == Yes) {
			out = append(out, f.Name)
		}
	}
	return out
}

// Missing lists required fields with empty values, in declaration order.
func (s *Schema) Missing(values map[string]string) []string {
	var missing []string
	for _, name := range s.RequiredFor(values) {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete reports whether every effectively required field has a value.
func (s *Schema) Complete(values map[string]string) bool {
	return len(s.Missing(values)) == 0
}

// Validate checks completeness and per-kind formatting. It returns a
// *ValidationError when anything is wrong.
func (s *Schema) Validate(values map[string]string) error {
	verr := &ValidationError{Missing: s.Missing(values)}
	for name, v := range values {
		f, ok := s.Field(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if reason := checkValue(f, strings.TrimSpace(v)); reason != "" {
			if verr.Invalid == nil {
				verr.Invalid = make(map[string]string)
			}
			verr.Invalid[name] = reason
		}
	}
	if len(verr.Missing) == 0 && len(verr.Invalid) == 0 {
		return nil
	}
	return verr
}

// Labels maps field names to their human labels, falling back to the name.
func (s *Schema) Labels(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if f, ok := s.Field(n); ok && f.Label != "" {
			out = append(out, f.Label)
			continue
		}
		out = append(out, n)
	}
	return out
}

// ValidationError describes why a field set cannot be submitted.
type ValidationError struct {
	Missing []string
	Invalid map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		names := make([]string, 0, len(e.Invalid))
		for n := range e.Invalid {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			parts = append(parts, fmt.Sprintf("%s %s", n, e.Invalid[n]))
		}
	}
	return "schema: invalid dispute fields: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	if len(e.Missing) > 0 {
		return ErrIncomplete
	}
	return nil
}

func checkValue(f Field, v string) string {
	switch f.Kind {
	case KindDate:
		if _, err := time.Parse(dateLayout, v); err != nil {
			return "must be a date formatted YYYY-MM-DD"
		}
	case KindAmount:
		return checkAmount(v)
	case KindCurrency:
		if len(v) != 3 || strings.ToUpper(v) != v || strings.IndexFunc(v, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
			return "must be a 3-letter ISO currency code"
		}
	case KindYesNo:
		if v != Yes && v != No {
			return "must be yes or no"
		}
	case KindEnum:
		for _, opt := range f.Options {
			if opt == v {
				return ""
			}
		}
		return "must be one of " + strings.Join(f.Options, ", ")
	}
	return ""
}

const maxAmountDigits = 10

// checkAmount accepts plain decimals between 0.01 and 9999999999.99 with at
// most two fractional digits, the range stored by numeric(12,2).
func checkAmount(v string) string {
	whole, frac, hasDot := strings.Cut(v, ".")
	switch {
	case !isDigits(whole) || (hasDot && !isDigits(frac)):
		return "must be a plain decimal number such as 49.99"
	case len(frac) > 2:
		return "must have at most two decimal places"
	case len(strings.TrimLeft(whole, "0")) > maxAmountDigits:
		return "must not exceed 9999999999.99"
	case strings.Trim(whole+frac, "0") == "":
		return "must be at least 0.01"
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeYesNo(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return Yes
	case "no", "n", "false", "0":
		return No
	default:
		return strings.ToLower(strings.TrimSpace(v))
	}
}
