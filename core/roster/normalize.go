package roster

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"

	"github.com/trezcool/vidyalaya/core"
)

// Canonical fields
const (
	FieldName        = "Student Name"
	FieldAddress     = "Address"
	FieldFatherName  = "Father's Name"
	FieldMotherName  = "Mother's Name"
	FieldFatherPhone = "Father's Phone"
	FieldMotherPhone = "Mother's Phone"
	FieldGrade       = "Grade"
	FieldSection     = "Section"

	// NoSection marks a row that did not carry a section.
	NoSection = ""
)

var (
	ImportHeaders = []string{FieldName, FieldAddress, FieldFatherName, FieldMotherName, FieldFatherPhone, FieldMotherPhone, FieldSection}
	ExportHeaders = []string{FieldName, FieldAddress, FieldFatherName, FieldMotherName, FieldFatherPhone, FieldMotherPhone, FieldGrade, FieldSection}

	phoneFields = map[string]bool{FieldFatherPhone: true, FieldMotherPhone: true}

	// folded header -> canonical field
	synonyms = buildSynonyms(map[string][]string{
		FieldName:        {"student name", "name", "students name", "full name", "student", "student full name"},
		FieldAddress:     {"address", "addr", "permanent address", "home address", "location"},
		FieldFatherName:  {"father's name", "father name", "father", "fathers full name", "guardian name"},
		FieldMotherName:  {"mother's name", "mother name", "mother", "mothers full name"},
		FieldFatherPhone: {"father's phone", "father phone", "father mobile", "father's mobile", "father contact", "father phone number", "father's phone number", "father's number", "guardian phone"},
		FieldMotherPhone: {"mother's phone", "mother phone", "mother mobile", "mother's mobile", "mother contact", "mother phone number", "mother's phone number", "mother's number"},
		FieldGrade:       {"grade", "class", "level", "grade level"},
		FieldSection:     {"section", "sec", "division"},
	})

	suggestionMinRatio = .6

	exponentRegex     = regexp.MustCompile(`^[+-]?\d+(\.\d+)?[eE][+-]?\d+$`)
	trailingZeroRegex = regexp.MustCompile(`^(\d+)\.0+$`)
)

type (
	RawRow = core.SheetRow

	NormalizedRow struct {
		Values       map[string]string // keyed by canonical field
		Unrecognized []core.Cell
		Conflicts    []string // canonical fields that got different values from different headers
	}

	UnrecognizedHeader struct {
		Header     string `json:"header"`
		Suggestion string `json:"suggestion,omitempty"`
	}
)

func buildSynonyms(table map[string][]string) map[string]string {
	out := make(map[string]string)
	for canonical, names := range table {
		out[foldHeader(canonical)] = canonical
		for _, name := range names {
			out[foldHeader(name)] = canonical
		}
	}
	return out
}

// foldHeader lowers s and drops every rune that is neither a letter nor a digit.
func foldHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalField returns the canonical field `header` stands for.
func CanonicalField(header string) (string, bool) {
	field, ok := synonyms[foldHeader(header)]
	return field, ok
}

// SuggestField returns the canonical field whose spelling is closest to `header`, if any is close enough.
func SuggestField(header string) string {
	folded := foldHeader(header)
	if folded == "" {
		return ""
	}
	var best string
	var bestRatio float64
	for syn, canonical := range synonyms {
		ratio := difflib.NewMatcher(strings.Split(folded, ""), strings.Split(syn, "")).Ratio()
		if ratio > bestRatio || (ratio == bestRatio && canonical < best) {
			best, bestRatio = canonical, ratio
		}
	}
	if bestRatio < suggestionMinRatio {
		return ""
	}
	return best
}

func (r NormalizedRow) Get(field string) string { return r.Values[field] }

// IsBlank reports whether every cell of the row, recognized or not, was empty.
func (r NormalizedRow) IsBlank() bool {
	for _, v := range r.Values {
		if v != "" {
			return false
		}
	}
	for _, c := range r.Unrecognized {
		if CellString(c.Value) != "" {
			return false
		}
	}
	return true
}

// Normalize maps the headers of `raw` onto the canonical fields and cleans the values.
func Normalize(raw RawRow) NormalizedRow {
	row := NormalizedRow{Values: make(map[string]string, len(ExportHeaders))}
	for _, cell := range raw {
		field, ok := CanonicalField(cell.Header)
		if !ok {
			row.Unrecognized = append(row.Unrecognized, cell)
			continue
		}

		val := cleanValue(field, cell.Value)
		prev, seen := row.Values[field]
		switch {
		case !seen || prev == "":
			row.Values[field] = val
		case val != "" && val != prev:
			if !contains(row.Conflicts, field) {
				row.Conflicts = append(row.Conflicts, field)
			}
		}
	}
	if _, ok := row.Values[FieldSection]; !ok {
		row.Values[FieldSection] = NoSection
	}
	return row
}

func cleanValue(field string, v interface{}) string {
	val := CellString(v)
	switch {
	case phoneFields[field]:
		return cleanPhone(val)
	case field == FieldName || field == FieldFatherName || field == FieldMotherName:
		return core.CollapseSpaces(val)
	}
	return val
}

// cleanPhone strips non-digits only when that leaves exactly 10 digits.
func cleanPhone(val string) string {
	if m := trailingZeroRegex.FindStringSubmatch(val); m != nil {
		val = m[1]
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, val)
	if len(digits) == 10 {
		return digits
	}
	return val
}

// CellString renders a cell value as trimmed text. Numbers never use exponent notation.
func CellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(val)
		if exponentRegex.MatchString(s) {
			if d, err := decimal.NewFromString(s); err == nil {
				return d.String()
			}
		}
		return s
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d.String()
		}
		return val.String()
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return decimal.NewFromFloat(val).String()
	case float32:
		return decimal.NewFromFloat32(val).String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
