// Package excel reads expedientes from the input spreadsheet and writes
// results back into the same file, preserving untouched rows and columns.
//
// Column contract: column A holds the expediente id (required), column B the
// saved cost (optional, defaults to 0), column C an optional name. Write-back
// overwrites columns C through H with cost, validation label, notes,
// registration date, service and subservice.
package excel

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/ike-ops/expedientes-cli/internal/model"
)

// Result column indexes (0-based) for write-back.
const (
	colID           = 0
	colSavedCost    = 1
	colName         = 2
	colCost         = 2
	colValidation   = 3
	colNotes        = 4
	colRegistration = 5
	colService      = 6
	colSubservice   = 7
)

const costNumberFormat = "#,##0.00"

// Validation failures for the input file.
var (
	ErrInvalidExtension = eris.New("excel: file must be .xlsx or .xls")
	ErrNoExpedientes    = eris.New("excel: file contains no usable expediente rows")
)

// ReadExpedientes parses the source file into pending expedientes. Row 1 is
// treated as a header and skipped; rows with a blank id cell are skipped
// silently; a blank or non-numeric cost cell yields a saved cost of 0.
func ReadExpedientes(path string) ([]*model.Expediente, error) {
	sheet, _, err := openFirstSheet(path)
	if err != nil {
		return nil, err
	}

	var expedientes []*model.Expediente
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}

		id := strings.TrimSpace(cellString(row, colID))
		if id == "" {
			continue
		}

		savedCost, err := model.ParseCents(cellString(row, colSavedCost))
		if err != nil {
			savedCost = 0
		}

		name := strings.TrimSpace(cellString(row, colName))
		expedientes = append(expedientes, model.NewExpediente(id, savedCost, name))
	}

	zap.L().Info("expedientes read from file",
		zap.String("path", path),
		zap.Int("count", len(expedientes)),
	)
	return expedientes, nil
}

// WriteBack reopens the source file and overwrites the result columns of
// every row whose id matches a processed record. Rows without a match and
// columns outside the result set are left untouched, so running it twice
// with the same records produces identical content.
func WriteBack(path string, expedientes []*model.Expediente) (int, error) {
	sheet, file, err := openFirstSheet(path)
	if err != nil {
		return 0, err
	}

	byID := make(map[string]*model.Expediente, len(expedientes))
	for _, e := range expedientes {
		byID[e.ID] = e
	}

	updated := 0
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}

		id := strings.TrimSpace(cellString(row, colID))
		e, ok := byID[id]
		if !ok {
			continue
		}

		var cost float64
		if e.Cost != nil {
			cost = e.Cost.Float64()
		}
		ensureCells(row, colSubservice+1)
		row.Cells[colCost].SetFloatWithFormat(cost, costNumberFormat)
		row.Cells[colValidation].SetString(string(e.Validation))
		row.Cells[colNotes].SetString(e.Notes)
		row.Cells[colRegistration].SetString(e.RegistrationDate)
		row.Cells[colService].SetString(e.Service)
		row.Cells[colSubservice].SetString(e.Subservice)
		updated++
	}

	if err := file.Save(path); err != nil {
		return 0, eris.Wrap(err, "excel: save file")
	}

	zap.L().Debug("write-back complete",
		zap.String("path", path),
		zap.Int("updated", updated),
	)
	return updated, nil
}

// Validate checks the input file before a run starts: it must exist, carry
// a spreadsheet extension, and contain at least one row with a usable id.
func Validate(path string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xls" {
		return 0, eris.Wrapf(ErrInvalidExtension, "%s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return 0, eris.Wrapf(err, "excel: stat %s", path)
	}

	sheet, _, err := openFirstSheet(path)
	if err != nil {
		return 0, err
	}

	count := 0
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		if strings.TrimSpace(cellString(row, colID)) != "" {
			count++
		}
	}
	if count == 0 {
		return 0, eris.Wrapf(ErrNoExpedientes, "%s", path)
	}
	return count, nil
}

func openFirstSheet(path string) (*xlsx.Sheet, *xlsx.File, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "excel: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.New("excel: no worksheet found")
	}
	return f.Sheets[0], f, nil
}

func cellString(row *xlsx.Row, idx int) string {
	if idx >= len(row.Cells) {
		return ""
	}
	return row.Cells[idx].String()
}

func ensureCells(row *xlsx.Row, n int) {
	for len(row.Cells) < n {
		row.AddCell()
	}
}
