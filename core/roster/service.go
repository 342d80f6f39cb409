package roster

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/student"
)

const (
	ExportSheet   = "Students"
	TemplateSheet = "Template"
)

type (
	Batch struct {
		Rows []RawRow `json:"rows"`
	}

	ImportOptions struct {
		Grade   string `json:"grade" form:"grade" query:"grade"`
		Section string `json:"section" form:"section" query:"section"`
	}

	ImportResult struct {
		Success             bool                 `json:"success"`
		ImportedCount       int                  `json:"importedCount"`
		CreatedCount        int                  `json:"createdCount"`
		UpdatedCount        int                  `json:"updatedCount"`
		Errors              []string             `json:"errors"`
		Message             string               `json:"message"`
		UnrecognizedHeaders []UnrecognizedHeader `json:"unrecognizedHeaders,omitempty"`
	}

	ExportFilter struct {
		Grade   string `query:"grade"`
		Section string `query:"section"`
	}

	ExportResult struct {
		Headers []string   `json:"headers"`
		Rows    [][]string `json:"rows"`
		Count   int        `json:"count"`
	}

	ServiceInterface interface {
		Import(ctx context.Context, batch Batch, opts ImportOptions) ImportResult
		ImportFile(ctx context.Context, r io.Reader, opts ImportOptions) (ImportResult, error)
		Export(ctx context.Context, filter ExportFilter) (ExportResult, error)
		ExportFile(ctx context.Context, filter ExportFilter) (ExportResult, []byte, error)
		Template() ExportResult
		TemplateFile() ([]byte, error)
	}

	Service struct {
		repo        student.Repository
		codec       core.SpreadsheetCodec
		logger      core.Logger
		sections    string
		emailDomain string
		now         func() time.Time
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo student.Repository, codec core.SpreadsheetCodec, logger core.Logger, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(codec, "codec"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:        repo,
		codec:       codec,
		logger:      logger,
		sections:    conf.School.Sections,
		emailDomain: conf.School.EmailDomain,
		now:         time.Now,
	}
}

// Import normalizes, validates and upserts every row of `batch`.
// A bad row never aborts the batch; rows already saved stay saved.
func (svc *Service) Import(ctx context.Context, batch Batch, opts ImportOptions) ImportResult {
	res := ImportResult{Errors: []string{}}

	opts.Grade = core.CleanString(opts.Grade)
	opts.Section = core.CleanString(opts.Section)
	if opts.Grade != "" {
		lvl, err := grade.ParseActive(opts.Grade)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Grade '%s' is not a valid class", opts.Grade))
		} else {
			opts.Grade = lvl.String()
		}
	}
	if opts.Section != "" && !student.ValidSection(opts.Section, svc.sections) {
		res.Errors = append(res.Errors, fmt.Sprintf("Section '%s' is not one of %s", opts.Section, formatSet(svc.sections)))
	}
	if len(res.Errors) > 0 {
		res.Message = "Import aborted: invalid options"
		return res
	}

	rules := Rules{Grade: opts.Grade, Sections: svc.sections}
	unrecognized := make(map[string]bool)
	var processed int

	for i, raw := range batch.Rows {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Import cancelled: rows from %d on were not processed", RowNumber(i)))
			break
		}
		rowNum := RowNumber(i)

		row := Normalize(raw)
		for _, c := range row.Unrecognized {
			if !unrecognized[c.Header] {
				unrecognized[c.Header] = true
				res.UnrecognizedHeaders = append(res.UnrecognizedHeaders, UnrecognizedHeader{
					Header:     c.Header,
					Suggestion: SuggestField(c.Header),
				})
			}
		}
		if row.IsBlank() {
			continue
		}
		processed++

		switch result := ValidateRow(row, rowNum, rules).(type) {
		case Rejected:
			res.Errors = append(res.Errors, result.Errors...)
		case Accepted:
			created, err := svc.save(ctx, result.Record, opts.Section)
			if err != nil {
				svc.logger.Error(fmt.Sprintf("import: saving row %d", rowNum), err)
				res.Errors = append(res.Errors, fmt.Sprintf("Row %d: could not be saved", rowNum))
				continue
			}
			res.ImportedCount++
			if created {
				res.CreatedCount++
			} else {
				res.UpdatedCount++
			}
		}
	}

	res.Success = res.ImportedCount > 0
	res.Message = importMessage(res, processed)
	svc.logger.Info(res.Message, map[string]interface{}{
		"imported": res.ImportedCount,
		"created":  res.CreatedCount,
		"updated":  res.UpdatedCount,
		"errors":   len(res.Errors),
	})
	return res
}

// save upserts the record. The section is the batch override, else the row's, else the default.
func (svc *Service) save(ctx context.Context, rec Record, sectionOverride string) (bool, error) {
	section := sectionOverride
	if section == "" {
		section = rec.Section
	}
	if section == NoSection {
		section = student.DefaultSection
	}

	now := svc.now().UTC()
	st := student.Student{
		Name:        rec.Name,
		Grade:       rec.Grade,
		Section:     section,
		Address:     rec.Address,
		FatherName:  rec.FatherName,
		MotherName:  rec.MotherName,
		FatherPhone: rec.FatherPhone,
		MotherPhone: rec.MotherPhone,
		Email:       student.GenerateEmail(rec.Name, svc.emailDomain),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, created, err := svc.repo.UpsertStudent(ctx, st)
	return created, err
}

func importMessage(res ImportResult, processed int) string {
	if processed == 0 {
		return "No rows to import"
	}
	if res.ImportedCount == 0 {
		return fmt.Sprintf("No students were imported; %d of %d rows had errors", processed, processed)
	}
	msg := fmt.Sprintf("Imported %d of %d rows (%d new, %d updated)",
		res.ImportedCount, processed, res.CreatedCount, res.UpdatedCount)
	if failed := processed - res.ImportedCount; failed > 0 {
		msg += fmt.Sprintf("; %d rows had errors", failed)
	}
	return msg
}

// ImportFile decodes a spreadsheet and imports its rows.
func (svc *Service) ImportFile(ctx context.Context, r io.Reader, opts ImportOptions) (ImportResult, error) {
	rows, err := svc.codec.Decode(r)
	if err != nil {
		return ImportResult{}, core.NewValidationError(
			errors.New("could not read spreadsheet"),
			core.FieldError{Field: "file", Error: err.Error()},
		)
	}
	return svc.Import(ctx, Batch{Rows: rows}, opts), nil
}

// Export lists the students matching `filter`, ordered by grade, section then name.
func (svc *Service) Export(ctx context.Context, filter ExportFilter) (ExportResult, error) {
	qf, err := svc.exportQuery(filter)
	if err != nil {
		return ExportResult{}, err
	}

	students, err := svc.repo.QueryStudents(ctx, qf, student.DefaultOrdering)
	if err != nil {
		return ExportResult{}, errors.Wrap(err, "querying students")
	}
	SortStudents(students)
	return ExportResult{
		Headers: ExportHeaders,
		Rows:    StudentRows(students),
		Count:   len(students),
	}, nil
}

func (svc *Service) exportQuery(filter ExportFilter) (*student.QueryFilter, error) {
	qf := &student.QueryFilter{Grade: filter.Grade, Section: filter.Section}
	qf.Clean()
	if qf.Grade != "" {
		if _, err := grade.ParseActive(qf.Grade); err != nil {
			return nil, err
		}
	}
	if qf.Section != "" && !student.ValidSection(qf.Section, svc.sections) {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: "section",
			Error: fmt.Sprintf("Section '%s' is not one of %s", qf.Section, formatSet(svc.sections)),
		})
	}
	return qf, nil
}

// ExportFile is Export encoded as a workbook.
func (svc *Service) ExportFile(ctx context.Context, filter ExportFilter) (ExportResult, []byte, error) {
	res, err := svc.Export(ctx, filter)
	if err != nil {
		return ExportResult{}, nil, err
	}
	b, err := svc.codec.Encode(ExportSheet, res.Headers, res.Rows)
	if err != nil {
		return ExportResult{}, nil, errors.Wrap(err, "encoding export")
	}
	return res, b, nil
}

// Template returns the import headers with no rows.
func (svc *Service) Template() ExportResult {
	headers := make([]string, len(ImportHeaders))
	copy(headers, ImportHeaders)
	return ExportResult{Headers: headers, Rows: [][]string{}}
}

func (svc *Service) TemplateFile() ([]byte, error) {
	tmpl := svc.Template()
	b, err := svc.codec.Encode(TemplateSheet, tmpl.Headers, tmpl.Rows)
	if err != nil {
		return nil, errors.Wrap(err, "encoding template")
	}
	return b, nil
}

// StudentRows renders students in the ExportHeaders column order.
func StudentRows(students []student.Student) [][]string {
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{
			s.Name, s.Address, s.FatherName, s.MotherName, s.FatherPhone, s.MotherPhone, s.Grade.String(), s.Section,
		})
	}
	return rows
}

// SortStudents orders students by grade rank, section then name.
func SortStudents(students []student.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.Grade != b.Grade {
			return a.Grade.Less(b.Grade)
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
