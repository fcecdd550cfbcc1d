package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	mdtable "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet in an XLSX export.
const SheetName = "Products"

// Write serializes t in format f. Call Normalize first for a clean export.
func Write(t *Table, f Format) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return writeXLSX(t)
	case FormatCSV:
		return writeCSV(t)
	case FormatMarkdown:
		return writeMarkdown(t)
	}
	return nil, fmt.Errorf("table: unknown format %q", f)
}

func writeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			rec[i] = CellString(row[c])
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("table: rename sheet: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("table: write header: %w", err)
	}

	for r, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			v := row[c]
			if v == nil {
				v = ""
			}
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return nil, fmt.Errorf("table: write row %d: %w", r+1, err)
		}
	}

	if len(t.Columns) > 0 {
		if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
			_ = f.SetRowStyle(SheetName, 1, 1, style)
		}
		_ = f.SetPanes(SheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("table: encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		mdtable.NewTablePlugin(
			mdtable.WithCellPaddingBehavior(mdtable.CellPaddingBehaviorMinimal),
		),
	),
)

// writeMarkdown renders t as an HTML table and converts it, so escaping of
// pipes and newlines inside cells is handled by the converter.
func writeMarkdown(t *Table) ([]byte, error) {
	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, c := range t.Columns {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(c))
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range t.Rows {
		b.WriteString("<tr>")
		for _, c := range t.Columns {
			b.WriteString("<td>")
			b.WriteString(html.EscapeString(CellString(row[c])))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")

	md, err := markdownConverter.ConvertString(b.String())
	if err != nil {
		return nil, fmt.Errorf("table: markdown: %w", err)
	}
	return []byte(md + "\n"), nil
}
