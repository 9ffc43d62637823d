package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gto_dupfinder/internal/domain"
)

// Filename picks the download name for a scan type.
func Filename(typ domain.ScanType) string {
	if typ == domain.ScanErrors {
		return "error_descriptions"
	}
	return "duplicates"
}

// WriteXLSX renders result rows as a single-sheet workbook. The core is
// agnostic to this format; rows come in exactly as the clusterer emitted them.
func WriteXLSX(w io.Writer, typ domain.ScanType, rows []domain.ResultRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Duplicates"
	headers := []string{"Hotel name", "ID 1", "ID 2", "Address", "Confidence", "Reason"}
	if typ == domain.ScanErrors {
		sheet = "Errors"
		headers = []string{"Hotel name", "ID", "Stars", "Reason"}
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	boldID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for col, hd := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, hd); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheet, cell, cell, boldID)
	}

	for i, r := range rows {
		var vals []any
		if typ == domain.ScanErrors {
			stars := ""
			if r.Stars != nil {
				stars = strconv.Itoa(*r.Stars)
			}
			vals = []any{r.HotelName, r.PrimaryID, stars, r.Reason}
		} else {
			conf := ""
			if r.Confidence != nil {
				conf = fmt.Sprintf("%.3f", *r.Confidence)
			}
			vals = []any{r.HotelName, r.PrimaryID, joinIDs(r.MatchedIDs), r.Address, conf, r.Reason}
		}
		for col, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
