package export_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"gto_dupfinder/internal/adapters/export"
	"gto_dupfinder/internal/domain"
)

func TestWriteXLSX_Duplicates(t *testing.T) {
	conf := 0.912
	rows := []domain.ResultRow{
		{
			HotelName:  "Grand Plaza / Grand Plaza Hotel",
			PrimaryID:  10,
			MatchedIDs: []int64{11, 15},
			Address:    "1 Main Str",
			Confidence: &conf,
			Flag:       "auto",
			Reason:     "distance 22 m, name similarity 1.00",
		},
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, domain.ScanDuplicates, rows); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	cases := []struct{ cell, want string }{
		{"A1", "Hotel name"},
		{"A2", "Grand Plaza / Grand Plaza Hotel"},
		{"B2", "10"},
		{"C2", "11, 15"},
		{"D2", "1 Main Str"},
		{"E2", "0.912"},
		{"F2", "distance 22 m, name similarity 1.00"},
	}
	for _, c := range cases {
		got, err := f.GetCellValue("Duplicates", c.cell)
		if err != nil {
			t.Fatalf("read %s: %v", c.cell, err)
		}
		if got != c.want {
			t.Errorf("cell %s = %q, want %q", c.cell, got, c.want)
		}
	}
}

func TestWriteXLSX_Errors(t *testing.T) {
	stars := 4
	rows := []domain.ResultRow{
		{HotelName: "Seaside Error 404", PrimaryID: 7, Stars: &stars, Flag: "error", Reason: "name contains 'Error'"},
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, domain.ScanErrors, rows); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Errors", "A2"); got != "Seaside Error 404" {
		t.Errorf("A2 = %q", got)
	}
	if got, _ := f.GetCellValue("Errors", "C2"); got != "4" {
		t.Errorf("C2 = %q, want stars", got)
	}
}

func TestFilename(t *testing.T) {
	if export.Filename(domain.ScanDuplicates) != "duplicates" {
		t.Fatal("duplicates filename")
	}
	if export.Filename(domain.ScanErrors) != "error_descriptions" {
		t.Fatal("errors filename")
	}
}
