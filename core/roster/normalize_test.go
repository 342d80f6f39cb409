package roster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/vidyalaya/core"
)

func TestCanonicalField(t *testing.T) {
	tests := []struct {
		header string
		want   string
		wantOK bool
	}{
		{header: "Father's Name", want: FieldFatherName, wantOK: true},
		{header: "father name", want: FieldFatherName, wantOK: true},
		{header: "fathername", want: FieldFatherName, wantOK: true},
		{header: "father_name", want: FieldFatherName, wantOK: true},
		{header: "  FATHER'S PHONE  ", want: FieldFatherPhone, wantOK: true},
		{header: "Mother Mobile", want: FieldMotherPhone, wantOK: true},
		{header: "Name", want: FieldName, wantOK: true},
		{header: "Class", want: FieldGrade, wantOK: true},
		{header: "sec.", want: FieldSection, wantOK: true},
		{header: "Roll No", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := CanonicalField(tt.header)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggestField(t *testing.T) {
	assert.Equal(t, FieldFatherPhone, SuggestField("Fathers Phon"))
	assert.Equal(t, FieldAddress, SuggestField("Adress"))
	assert.Equal(t, "", SuggestField("Roll No"))
	assert.Equal(t, "", SuggestField("!!"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name             string
		raw              RawRow
		wantValues       map[string]string
		wantUnrecognized []core.Cell
		wantConflicts    []string
	}{
		{
			name: "synonyms and cleaning",
			raw: RawRow{
				{Header: "Name", Value: "  Ram   Bahadur  "},
				{Header: "father_name", Value: " Hari "},
				{Header: "Father Phone", Value: "980-000-0001"},
				{Header: "Mother's Phone", Value: "+977 980"},
				{Header: "Section", Value: "b"},
				{Header: "Roll No", Value: "12"},
			},
			wantValues: map[string]string{
				FieldName:        "Ram Bahadur",
				FieldFatherName:  "Hari",
				FieldFatherPhone: "9800000001",
				FieldMotherPhone: "+977 980",
				FieldSection:     "b",
			},
			wantUnrecognized: []core.Cell{{Header: "Roll No", Value: "12"}},
		},
		{
			name: "numbers without exponent",
			raw: RawRow{
				{Header: "Student Name", Value: "Sita"},
				{Header: "Father's Phone", Value: 9800000001.0},
				{Header: "Mother's Phone", Value: json.Number("9.800000002e9")},
				{Header: "Address", Value: "9.8E+3"},
			},
			wantValues: map[string]string{
				FieldName:        "Sita",
				FieldFatherPhone: "9800000001",
				FieldMotherPhone: "9800000002",
				FieldAddress:     "9800",
				FieldSection:     NoSection,
			},
		},
		{
			name: "phone with trailing zero decimals",
			raw: RawRow{
				{Header: "Student Name", Value: "Gita"},
				{Header: "Father's Phone", Value: "9800000001.0"},
			},
			wantValues: map[string]string{
				FieldName:        "Gita",
				FieldFatherPhone: "9800000001",
				FieldSection:     NoSection,
			},
		},
		{
			name: "conflicting duplicate headers keep the first value",
			raw: RawRow{
				{Header: "Student Name", Value: "Hari"},
				{Header: "Father Phone", Value: "9800000001"},
				{Header: "Father's Mobile", Value: "9800000009"},
				{Header: "Section", Value: ""},
				{Header: "Sec", Value: "C"},
			},
			wantValues: map[string]string{
				FieldName:        "Hari",
				FieldFatherPhone: "9800000001",
				FieldSection:     "C",
			},
			wantConflicts: []string{FieldFatherPhone},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.Equal(t, tt.wantValues, got.Values)
			assert.Equal(t, tt.wantUnrecognized, got.Unrecognized)
			assert.Equal(t, tt.wantConflicts, got.Conflicts)
		})
	}
}

func TestNormalizedRow_IsBlank(t *testing.T) {
	assert.True(t, Normalize(RawRow{{Header: "Name", Value: " "}, {Header: "Roll", Value: nil}}).IsBlank())
	assert.False(t, Normalize(RawRow{{Header: "Roll", Value: "3"}}).IsBlank())
	assert.True(t, Normalize(nil).IsBlank())
}

func TestCellString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{in: nil, want: ""},
		{in: "  x ", want: "x"},
		{in: 1e10, want: "10000000000"},
		{in: 12.5, want: "12.5"},
		{in: 7, want: "7"},
		{in: int64(9800000001), want: "9800000001"},
		{in: json.Number("1E3"), want: "1000"},
		{in: true, want: "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CellString(tt.in))
	}
}
