package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/use-agent/shelfscan/models"
)

// Read parses an uploaded CSV or XLSX file chosen by name's extension. Any
// problem is an InputFailure.
func Read(name string, data []byte) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err = readCSV(data)
	case ".xlsx":
		rows, err = readXLSX(data)
	default:
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported upload %q: expected a .csv or .xlsx file", name), nil)
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("error reading file %q", name), err)
	}
	return fromGrid(rows)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]
	for _, s := range sheets {
		if s == SheetName {
			sheet = s
			break
		}
	}
	return f.GetRows(sheet)
}

// fromGrid treats the first row as the header. Short rows are padded with
// missing cells; blank header cells get pandas-style "Unnamed: N" names.
func fromGrid(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "uploaded file is empty", nil)
	}

	header := make([]string, len(rows[0]))
	seen := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		header[i] = h
	}

	t := &Table{Columns: header}
	for _, rec := range rows[1:] {
		if blankRow(rec) {
			continue
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i >= len(rec) || rec[i] == "" {
				continue
			}
			row[col] = coerce(col, rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// coerce turns the price column back into numbers so it round-trips with
// freshly scraped rows. Every other column stays text.
func coerce(col, v string) any {
	if col != models.FieldPrice {
		return v
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return f
	}
	return v
}
