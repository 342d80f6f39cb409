package roster

import (
	"fmt"
	"strings"

	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/student"
)

type (
	Rules struct {
		// Grade is the batch-level target grade. When empty, the row's own Grade column is used.
		Grade    string
		Sections string
	}

	// Record holds the validated values of an accepted row.
	Record struct {
		Name        string
		Address     string
		FatherName  string
		MotherName  string
		FatherPhone string
		MotherPhone string
		Grade       grade.Level
		Section     string // NoSection when the row had none
	}

	// RowResult is either Accepted or Rejected.
	RowResult interface {
		RowNumber() int
		rowResult()
	}

	Accepted struct {
		Row    int
		Record Record
	}

	Rejected struct {
		Row    int
		Errors []string
	}
)

func (a Accepted) RowNumber() int { return a.Row }
func (r Rejected) RowNumber() int { return r.Row }
func (Accepted) rowResult()       {}
func (Rejected) rowResult()       {}

// RowNumber returns the spreadsheet row number of the data row at index i; row 1 holds the headers.
func RowNumber(i int) int { return i + 2 }

// ValidateRow checks every rule against `row` and collects all violations.
func ValidateRow(row NormalizedRow, rowNum int, rules Rules) RowResult {
	var errs []string
	report := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf("Row %d: ", rowNum)+fmt.Sprintf(format, args...))
	}

	name := row.Get(FieldName)
	if name == "" {
		report("Missing Student Name")
	}

	for _, field := range []string{FieldFatherPhone, FieldMotherPhone} {
		if phone := row.Get(field); phone != "" && !student.ValidPhone(phone) {
			report("%s '%s' is not 10 digits", field, phone)
		}
	}

	rawGrade := rules.Grade
	if rawGrade == "" {
		rawGrade = row.Get(FieldGrade)
	}
	lvl, err := grade.ParseActive(rawGrade)
	if err != nil {
		report("Grade '%s' is not a valid class", rawGrade)
	}

	section := row.Get(FieldSection)
	if section != NoSection && !student.ValidSection(section, rules.Sections) {
		report("Section '%s' is not one of %s", section, formatSet(rules.Sections))
	}

	for _, field := range row.Conflicts {
		report("conflicting values for %s", field)
	}

	if len(errs) > 0 {
		return Rejected{Row: rowNum, Errors: errs}
	}
	return Accepted{
		Row: rowNum,
		Record: Record{
			Name:        name,
			Address:     row.Get(FieldAddress),
			FatherName:  row.Get(FieldFatherName),
			MotherName:  row.Get(FieldMotherName),
			FatherPhone: row.Get(FieldFatherPhone),
			MotherPhone: row.Get(FieldMotherPhone),
			Grade:       lvl,
			Section:     section,
		},
	}
}

func formatSet(set string) string {
	return strings.Join(strings.Split(set, ""), ", ")
}
