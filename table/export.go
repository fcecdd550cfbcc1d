package table

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// Format is an export encoding.
type Format string

const (
	FormatXLSX     Format = "xlsx"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name, case-insensitively. "excel" is an
// alias for xlsx and "md" for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xlsx", "excel", "":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", models.NewScrapeError(models.ErrCodeInvalidInput,
		fmt.Sprintf("unknown export format %q (want xlsx, csv or markdown)", s), nil)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// MimeType returns the content type of an encoded export.
func (f Format) MimeType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	case FormatMarkdown:
		return "text/markdown"
	}
	return "application/octet-stream"
}

// Export is one encoded output file.
type Export struct {
	Filename string
	Format   Format
	Data     []byte
}

// MimeType returns the export's content type.
func (e *Export) MimeType() string { return e.Format.MimeType() }

// Base64 returns the standard base64 encoding of the file body.
func (e *Export) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURI returns the file as a data: URI for direct download links.
func (e *Export) DataURI() string {
	return "data:" + e.MimeType() + ";base64," + e.Base64()
}

// Encode normalizes t and serializes it.
func Encode(t *Table, f Format, filename string) (*Export, error) {
	t.Normalize()
	data, err := Write(t, f)
	if err != nil {
		return nil, err
	}
	return &Export{Filename: filename, Format: f, Data: data}, nil
}

// Filename names an export. When merging into an upload, the upload's
// base name is kept with the extension switched to f. Otherwise the name
// is built from the domain and the date.
func Filename(uploadName, domain string, f Format, now time.Time) string {
	if uploadName != "" {
		base := filepath.Base(uploadName)
		return strings.TrimSuffix(base, filepath.Ext(base)) + "." + f.Ext()
	}
	safe := strings.NewReplacer(".", "_", ":", "_").Replace(domain)
	return fmt.Sprintf("%s_products_%s.%s", safe, now.Format("20060102"), f.Ext())
}
