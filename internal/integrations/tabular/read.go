// internal/integrations/tabular/read.go
package tabular

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html/charset"
)

// ReadXLSX returns the cell text of one sheet; an empty sheet name means the first sheet.
func ReadXLSX(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// ReadCSV decodes a CSV export. contentType is the HTTP Content-Type (may be
// empty); a charset label in it wins over sniffing.
func ReadCSV(r io.Reader, contentType string) ([][]string, error) {
	in, err := decoder(bufio.NewReader(r), contentType)
	if err != nil {
		return nil, fmt.Errorf("charset: %w", err)
	}

	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func decoder(r io.Reader, contentType string) (io.Reader, error) {
	if label := charsetLabel(contentType); label != "" {
		return charset.NewReaderLabel(normalizeCharset(label), r)
	}
	if contentType == "" {
		contentType = "text/csv"
	}
	return charset.NewReader(r, contentType)
}

func charsetLabel(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "charset") {
			return strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return ""
}

// normalizeCharset maps labels seen on Thai exports to names charset knows.
func normalizeCharset(cs string) string {
	c := strings.TrimSpace(strings.ToLower(cs))
	switch c {
	case "tis620", "tis-620", "iso8859-11", "iso-8859-11", "cp874", "windows874", "win-874":
		return "windows-874"
	case "utf8":
		return "utf-8"
	default:
		return c
	}
}
