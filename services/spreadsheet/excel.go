// Package spreadsheet reads and writes the single-sheet workbooks exchanged with the school office.
package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/vidyalaya/core"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
)

var (
	ErrNoSheet   = errors.New("workbook has no sheet")
	ErrNoHeaders = errors.New("first row holds no headers")
	ErrLegacyXLS = errors.New("legacy .xls workbooks are not supported; save the file as .xlsx")

	// AcceptedContentTypes are the upload types the codec can read.
	AcceptedContentTypes = []string{
		ContentTypeXLSX,
		ContentTypeCSV,
		"application/csv",
		"text/plain",
		"application/zip",          // xlsx sniffed by content
		"application/octet-stream", // browsers that do not know the extension
	}

	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1") // BIFF .xls compound file
)

type ExcelCodec struct{}

var _ core.SpreadsheetCodec = (*ExcelCodec)(nil)

func NewExcelCodec() *ExcelCodec { return &ExcelCodec{} }

// Decode reads the active sheet of an xlsx workbook, or a CSV file. Row 1 holds the headers.
// Empty rows are kept so row positions match the file. Legacy .xls files are refused.
func (c *ExcelCodec) Decode(r io.Reader) ([]core.SheetRow, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(oleMagic))
	switch {
	case bytes.HasPrefix(head, oleMagic):
		return nil, ErrLegacyXLS
	case !bytes.HasPrefix(head, zipMagic):
		return decodeCSV(br)
	}

	f, err := excelize.OpenReader(br)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheet
		}
		sheet = sheets[0]
	}
	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheet)
	}
	return toRows(grid)
}

func decodeCSV(r io.Reader) ([]core.SheetRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	}
	return toRows(grid)
}

// toRows pairs every data cell with its column header. Columns without a header are dropped.
func toRows(grid [][]string) ([]core.SheetRow, error) {
	if len(grid) == 0 {
		return nil, ErrNoHeaders
	}
	headers := make([]string, len(grid[0]))
	var hasHeader bool
	for i, h := range grid[0] {
		headers[i] = strings.TrimSpace(h)
		hasHeader = hasHeader || headers[i] != ""
	}
	if !hasHeader {
		return nil, ErrNoHeaders
	}

	rows := make([]core.SheetRow, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(core.SheetRow, 0, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			var val string
			if i < len(cells) {
				val = cells[i]
			}
			row = append(row, core.Cell{Header: h, Value: val})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Encode writes headers and rows as text cells to a workbook holding a single sheet.
func (c *ExcelCodec) Encode(sheet string, headers []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return nil, errors.Wrap(err, "naming sheet")
		}
	}

	if err := setRow(f, sheet, 1, headers); err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, errors.Wrap(err, "creating header style")
		}
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err = f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return nil, errors.Wrap(err, "styling headers")
		}
		for i, h := range headers {
			col, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(sheet, col, col, float64(len(h)+6))
		}
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return errors.Wrapf(f.SetSheetRow(sheet, cell, &cells), "writing row %d", rowNum)
}

// IsAccepted reports whether contentType (parameters ignored) can be decoded.
func IsAccepted(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, accepted := range AcceptedContentTypes {
		if ct == accepted {
			return true
		}
	}
	return false
}
