// Package filter turns a saved search's typed filter set into the boolean
// filter expression understood by the search index.
//
// Expressions follow the Meilisearch filter grammar:
//
//	status = "published" AND (state = "Lagos" OR state = "Oyo") AND tuition_fee <= 250000
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"naijaedu/alerts-service/internal/model"
)

var (
	// ErrTranslation wraps every failure to turn stored filters into an expression.
	ErrTranslation = errors.New("filter translation failed")

	// ErrUnknownKind is returned for a saved search kind with no index.
	ErrUnknownKind = fmt.Errorf("%w: unknown entity kind", ErrTranslation)

	// ErrUnsupportedField is returned when a filter does not apply to the kind.
	ErrUnsupportedField = fmt.Errorf("%w: field not supported for kind", ErrTranslation)
)

// Range is an inclusive numeric bound; either end may be open.
type Range struct {
	Min *float64 `json:"min,omitempty" validate:"omitempty,gte=0"`
	Max *float64 `json:"max,omitempty" validate:"omitempty,gte=0"`
}

// Set is the typed filter structure stored with a saved search.
type Set struct {
	State        []string `json:"state,omitempty" validate:"omitempty,dive,required,max=128"`
	Type         []string `json:"type,omitempty" validate:"omitempty,dive,required,max=128"`
	DegreeType   []string `json:"degree_type,omitempty" validate:"omitempty,dive,required,max=128"`
	FieldOfStudy []string `json:"field_of_study,omitempty" validate:"omitempty,dive,required,max=128"`
	Mode         []string `json:"mode,omitempty" validate:"omitempty,dive,required,max=128"`
	Tuition      *Range   `json:"tuition,omitempty"`
	Cutoff       *Range   `json:"cutoff,omitempty"`
}

// IsEmpty reports whether no field contributes a clause.
func (s Set) IsEmpty() bool {
	return len(s.State) == 0 && len(s.Type) == 0 && len(s.DegreeType) == 0 &&
		len(s.FieldOfStudy) == 0 && len(s.Mode) == 0 &&
		s.Tuition.empty() && s.Cutoff.empty()
}

func (r *Range) empty() bool { return r == nil || (r.Min == nil && r.Max == nil) }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		var r Range
		switch v := sl.Current().Interface().(type) {
		case Range:
			r = v
		case *Range:
			r = *v
		}
		if r.Min != nil && math.IsNaN(*r.Min) {
			sl.ReportError(r.Min, "Min", "min", "number", "")
		}
		if r.Max != nil && math.IsNaN(*r.Max) {
			sl.ReportError(r.Max, "Max", "max", "number", "")
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			sl.ReportError(r.Max, "Max", "max", "gtefield", "Min")
		}
	}, Range{})
	return v
}

// Validate checks a filter set. Writers call it when a saved search is
// created or edited; Parse calls it again for rows written before that.
func Validate(s Set) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	return nil
}

// Parse decodes the JSONB filter column. Empty input yields an empty Set.
func Parse(raw []byte) (Set, error) {
	var s Set
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Set{}, fmt.Errorf("%w: decode: %v", ErrTranslation, err)
	}
	if err := Validate(s); err != nil {
		return Set{}, err
	}
	return s, nil
}

// activeClause restricts every query to records visible in the directory.
func activeClause(kind model.EntityKind) (string, error) {
	switch kind {
	case model.KindPrograms:
		return `status = "published"`, nil
	case model.KindInstitutions:
		return `status = "active"`, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownKind, kind)
}

// Translate builds the filter expression for kind. Clauses appear in a fixed
// order so identical sets always produce identical expressions.
func Translate(kind model.EntityKind, s Set) (string, error) {
	base, err := activeClause(kind)
	if err != nil {
		return "", err
	}
	if kind == model.KindInstitutions {
		switch {
		case len(s.DegreeType) > 0:
			return "", fmt.Errorf("%w: degree_type on %s", ErrUnsupportedField, kind)
		case len(s.FieldOfStudy) > 0:
			return "", fmt.Errorf("%w: field_of_study on %s", ErrUnsupportedField, kind)
		case len(s.Mode) > 0:
			return "", fmt.Errorf("%w: mode on %s", ErrUnsupportedField, kind)
		case !s.Tuition.empty():
			return "", fmt.Errorf("%w: tuition on %s", ErrUnsupportedField, kind)
		case !s.Cutoff.empty():
			return "", fmt.Errorf("%w: cutoff on %s", ErrUnsupportedField, kind)
		}
	}

	clauses := []string{base}
	clauses = appendGroup(clauses, "state", s.State)
	clauses = appendGroup(clauses, "type", s.Type)
	clauses = appendGroup(clauses, "degree_type", s.DegreeType)
	clauses = appendGroup(clauses, "field_of_study", s.FieldOfStudy)
	clauses = appendGroup(clauses, "mode", s.Mode)
	clauses = appendRange(clauses, "tuition_fee", s.Tuition)
	clauses = appendRange(clauses, "cutoff_mark", s.Cutoff)

	return strings.Join(clauses, " AND "), nil
}

func appendGroup(clauses []string, field string, values []string) []string {
	seen := make(map[string]struct{}, len(values))
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		parts = append(parts, field+" = "+quote(v))
	}
	switch len(parts) {
	case 0:
		return clauses
	case 1:
		return append(clauses, parts[0])
	}
	return append(clauses, "("+strings.Join(parts, " OR ")+")")
}

func appendRange(clauses []string, field string, r *Range) []string {
	if r == nil {
		return clauses
	}
	if r.Min != nil {
		clauses = append(clauses, field+" >= "+number(*r.Min))
	}
	if r.Max != nil {
		clauses = append(clauses, field+" <= "+number(*r.Max))
	}
	return clauses
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
