package parse

import (
	"encoding/csv"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ctrl-q/ctrlq/errors"
)

// ReadDelimited parses delimited text into rows, header included. Quoted
// fields with embedded delimiters and line breaks are handled by
// encoding/csv's RFC 4180 reader (§4.4, "Delimited text").
func ReadDelimited(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows; RequireColumns catches real gaps
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading delimited source")
	}
	return firstNonEmptyOnward(rows), nil
}

// ReadSpreadsheet parses sheetName of an .xlsx workbook into rows, header
// included (§4.4, "Spreadsheet").
func ReadSpreadsheet(path, sheetName string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening spreadsheet %q", path)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheetName)
	}
	if rows == nil {
		return nil, errors.Newf("sheet %q not found or empty", sheetName)
	}
	return rows, nil
}

// firstNonEmptyOnward drops leading blank lines so the first non-empty
// line is treated as the header, per §4.4.
func firstNonEmptyOnward(rows [][]string) [][]string {
	for i, row := range rows {
		if !isBlankRow(row) {
			return rows[i:]
		}
	}
	return nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
