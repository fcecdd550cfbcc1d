package table

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/use-agent/shelfscan/models"
)

func price(v float64) *float64 { return &v }

func sampleRecords() []*models.Record {
	return []*models.Record{
		{Fields: map[string]string{"name": "Filter A", "sku": "A1", "url": "https://shop.test/p/a", "Color": "White", "category": ""}, Price: price(19.99)},
		{Fields: map[string]string{"name": "Filter B", "sku": "", "url": "https://shop.test/p/b", "Width": "10 in", "category": ""}},
	}
}

func TestMergeRowCountAndColumnUnion(t *testing.T) {
	existing, err := Read("old.csv", []byte("name,sku,legacy_note\nOld 1,O1,keep\nOld 2,O2,\nOld 3,,x\n"))
	require.NoError(t, err)
	fresh := FromRecords(sampleRecords())

	merged := Merge(existing, fresh)
	assert.Equal(t, existing.Len()+fresh.Len(), merged.Len())
	assert.Equal(t, 5, merged.Len())

	want := map[string]bool{}
	for _, c := range append(append([]string{}, existing.Columns...), fresh.Columns...) {
		want[c] = true
	}
	got := map[string]bool{}
	for _, c := range merged.Columns {
		assert.False(t, got[c], "duplicate column %s", c)
		got[c] = true
	}
	assert.Equal(t, want, got)

	// Inputs are left untouched.
	assert.Equal(t, 3, existing.Len())
	assert.Equal(t, 2, fresh.Len())
}

func TestMergeWithNil(t *testing.T) {
	fresh := FromRecords(sampleRecords())
	assert.Equal(t, 2, Merge(nil, fresh).Len())
}

func TestNormalize(t *testing.T) {
	tbl := FromRecords(sampleRecords())
	tbl.Normalize()

	assert.Equal(t, []string{"name", "sku", "current_price", "url", "Color", "Width"}, tbl.Columns)
	for _, row := range tbl.Rows {
		assert.Len(t, row, len(tbl.Columns))
	}
	assert.Equal(t, "", tbl.Rows[1]["sku"])
	assert.Equal(t, "", tbl.Rows[1]["current_price"])
	assert.Equal(t, 19.99, tbl.Rows[0]["current_price"])
	_, hasCategory := tbl.Rows[0]["category"]
	assert.False(t, hasCategory)
}

func TestOrderColumns(t *testing.T) {
	got := OrderColumns([]string{"zeta", "url", "Alpha", "name", "description", "brand", "beta"})
	assert.Equal(t, []string{"name", "brand", "description", "url", "Alpha", "beta", "zeta"}, got)
	assert.Empty(t, OrderColumns(nil))
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := FromRecords(sampleRecords())
	exp, err := Encode(tbl, FormatCSV, "out.csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(exp.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,sku,current_price,url,Color,Width", lines[0])
	assert.Equal(t, "Filter A,A1,19.99,https://shop.test/p/a,White,", lines[1])

	back, err := Read("out.csv", exp.Data)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Len())
	assert.Equal(t, 19.99, back.Rows[0]["current_price"])
	assert.Equal(t, "A1", back.Rows[0]["sku"])
}

func TestXLSXRoundTrip(t *testing.T) {
	tbl := FromRecords(sampleRecords())
	exp, err := Encode(tbl, FormatXLSX, "out.xlsx")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(exp.Data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	header, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "sku", "current_price", "url", "Color", "Width"}, header[0])

	back, err := Read("upload.xlsx", exp.Data)
	require.NoError(t, err)
	require.Equal(t, 2, back.Len())
	assert.Equal(t, "Filter B", back.Rows[1]["name"])
	assert.Equal(t, 19.99, back.Rows[0]["current_price"])
}

func TestMarkdownExport(t *testing.T) {
	tbl := FromRecords(sampleRecords())
	exp, err := Encode(tbl, FormatMarkdown, "out.md")
	require.NoError(t, err)
	md := string(exp.Data)
	assert.Contains(t, md, "| name")
	assert.Contains(t, md, "Filter B")
	assert.Contains(t, md, "19.99")
}

func TestReadErrors(t *testing.T) {
	_, err := Read("data.json", []byte("{}"))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))

	_, err = Read("empty.csv", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))

	_, err = Read("bad.xlsx", []byte("not a zip"))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))

	_, err = Read("quotes.csv", []byte("a,b\n\"unterminated,1\n"))
	require.Error(t, err)
}

func TestReadCSVHeaderQuirks(t *testing.T) {
	tbl, err := Read("x.CSV", []byte("\xef\xbb\xbfname,,name\nA,B,C\n\n,,\nD\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "Unnamed: 1", "name.1"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "C", tbl.Rows[0]["name.1"])
	assert.Equal(t, map[string]any{"name": "D"}, tbl.Rows[1])
}

func TestFilename(t *testing.T) {
	day := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "www_shop_test_products_20240309.xlsx", Filename("", "www.shop.test", FormatXLSX, day))
	assert.Equal(t, "127_0_0_1_8080_products_20240309.csv", Filename("", "127.0.0.1:8080", FormatCSV, day))
	assert.Equal(t, "catalog.xlsx", Filename("/tmp/uploads/catalog.xlsx", "shop.test", FormatXLSX, day))
	assert.Equal(t, "catalog.csv", Filename("catalog.xlsx", "shop.test", FormatCSV, day))
	assert.Equal(t, "catalog.md", Filename("catalog.csv", "shop.test", FormatMarkdown, day))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatXLSX, "Excel": FormatXLSX, "CSV": FormatCSV, "md": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestExportBase64(t *testing.T) {
	exp := &Export{Filename: "a.csv", Format: FormatCSV, Data: []byte("name\nx\n")}
	raw, err := base64.StdEncoding.DecodeString(exp.Base64())
	require.NoError(t, err)
	assert.Equal(t, exp.Data, raw)
	assert.True(t, strings.HasPrefix(exp.DataURI(), "data:text/csv;base64,"))
}
