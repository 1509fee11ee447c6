// Package tabulartest builds spreadsheet fixtures for adapter tests.
package tabulartest

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// XLSX renders rows into the first sheet of a new workbook.
func XLSX(t testing.TB, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cellRef, &r); err != nil {
			t.Fatalf("set row %d: %v", i, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf.Bytes()
}
