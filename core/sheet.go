package core

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"
)

type (
	// Cell is one header/value pair of a spreadsheet row.
	Cell struct {
		Header string
		Value  interface{}
	}

	// SheetRow is a spreadsheet row with its cells in column order.
	SheetRow []Cell

	// SpreadsheetCodec reads and writes single-sheet workbooks.
	SpreadsheetCodec interface {
		// Decode reads the first sheet of a workbook. Row 1 holds the headers.
		Decode(r io.Reader) ([]SheetRow, error)
		Encode(sheet string, headers []string, rows [][]string) ([]byte, error)
	}
)

// SheetRowFromMap builds a row from m, ordering cells by header.
func SheetRowFromMap(m map[string]interface{}) SheetRow {
	headers := make([]string, 0, len(m))
	for h := range m {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	row := make(SheetRow, 0, len(m))
	for _, h := range headers {
		row = append(row, Cell{Header: h, Value: m[h]})
	}
	return row
}

// UnmarshalJSON decodes a JSON object keeping its key order. Numbers decode as json.Number.
func (row *SheetRow) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("spreadsheet row must be a JSON object")
	}

	cells := make(SheetRow, 0)
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		header, _ := tok.(string)
		var val interface{}
		if err = dec.Decode(&val); err != nil {
			return errors.Wrapf(err, "decoding %q", header)
		}
		cells = append(cells, Cell{Header: header, Value: val})
	}
	if _, err = dec.Token(); err != nil {
		return err
	}
	*row = cells
	return nil
}

func (row SheetRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range row {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Header)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
