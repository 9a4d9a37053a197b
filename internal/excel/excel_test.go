package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ike-ops/expedientes-cli/internal/model"
)

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Expedientes")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			cell := row.AddCell()
			cell.SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "expedientes.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadExpedientes(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Expediente", "Costo", "Nombre"},
		{"1001", "500.00", "Servicio grua"},
		{"1002", "$1,250.50", ""},
		{"", "999", "sin id, se ignora"},
		{"1003", "", "costo en blanco"},
	})

	expedientes, err := ReadExpedientes(path)
	require.NoError(t, err)
	require.Len(t, expedientes, 3)

	assert.Equal(t, "1001", expedientes[0].ID)
	assert.Equal(t, model.Cents(50000), expedientes[0].SavedCost)
	assert.Equal(t, "Servicio grua", expedientes[0].Name)
	assert.Equal(t, model.StatusPending, expedientes[0].Status)

	assert.Equal(t, model.Cents(125050), expedientes[1].SavedCost)

	// Blank cost defaults to zero.
	assert.Equal(t, "1003", expedientes[2].ID)
	assert.Equal(t, model.Cents(0), expedientes[2].SavedCost)
}

func TestReadExpedientesNonNumericCost(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Expediente", "Costo"},
		{"2001", "no es numero"},
	})

	expedientes, err := ReadExpedientes(path)
	require.NoError(t, err)
	require.Len(t, expedientes, 1)
	assert.Equal(t, model.Cents(0), expedientes[0].SavedCost)
}

func TestWriteBack(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Expediente", "Costo", "Nombre"},
		{"1001", "500.00", "uno"},
		{"1002", "300.00", "dos"},
		{"9999", "1.00", "sin resultado"},
	})

	cost := model.Cents(50000)
	e1 := model.NewExpediente("1001", 50000, "uno")
	e1.MarkProcessed(&model.SearchOutcome{
		ExpedienteID:     "1001",
		Success:          true,
		Cost:             &cost,
		PortalStatus:     "Activo",
		Notes:            "ok",
		RegistrationDate: "2026-01-15",
		Service:          "Grua",
		Subservice:       "Arrastre",
		Validation:       model.ValidationAccepted,
		RuleApplied:      1,
	})
	e2 := model.NewExpediente("1002", 30000, "dos")
	e2.MarkFailed("tiempo de espera agotado")

	updated, err := WriteBack(path, []*model.Expediente{e1, e2})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheets[0]

	// Header untouched.
	assert.Equal(t, "Expediente", sheet.Rows[0].Cells[0].String())

	row1 := sheet.Rows[1]
	got, err := row1.Cells[colCost].Float()
	require.NoError(t, err)
	assert.InDelta(t, 500.0, got, 0.001)
	assert.Equal(t, "ACEPTADO", row1.Cells[colValidation].String())
	assert.Equal(t, "ok", row1.Cells[colNotes].String())
	assert.Equal(t, "2026-01-15", row1.Cells[colRegistration].String())
	assert.Equal(t, "Grua", row1.Cells[colService].String())
	assert.Equal(t, "Arrastre", row1.Cells[colSubservice].String())

	row2 := sheet.Rows[2]
	assert.Equal(t, "NO ENCONTRADO", row2.Cells[colValidation].String())

	// Unmatched row keeps its original content.
	row3 := sheet.Rows[3]
	assert.Equal(t, "9999", row3.Cells[0].String())
	assert.Equal(t, "sin resultado", row3.Cells[2].String())

	// Saved cost column (B) is never overwritten.
	assert.Equal(t, "500.00", row1.Cells[colSavedCost].String())
}

func TestWriteBackIdempotent(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Expediente", "Costo"},
		{"1001", "500.00"},
	})

	cost := model.Cents(50000)
	e := model.NewExpediente("1001", 50000, "")
	e.MarkProcessed(&model.SearchOutcome{
		ExpedienteID: "1001",
		Success:      true,
		Cost:         &cost,
		Validation:   model.ValidationAccepted,
	})
	records := []*model.Expediente{e}

	_, err := WriteBack(path, records)
	require.NoError(t, err)
	first, err := readSheetStrings(path)
	require.NoError(t, err)

	_, err = WriteBack(path, records)
	require.NoError(t, err)
	second, err := readSheetStrings(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func readSheetStrings(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, err
	}
	var out [][]string
	for _, row := range f.Sheets[0].Rows {
		var cells []string
		for _, c := range row.Cells {
			cells = append(cells, c.String())
		}
		out = append(out, cells)
	}
	return out, nil
}

func TestValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := createTestXLSX(t, [][]string{
			{"Expediente", "Costo"},
			{"1001", "500"},
			{"1002", "300"},
		})
		count, err := Validate(path)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "expedientes.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b"), 0o644))
		_, err := Validate(path)
		require.ErrorIs(t, err, ErrInvalidExtension)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Validate(filepath.Join(t.TempDir(), "nope.xlsx"))
		require.Error(t, err)
	})

	t.Run("no usable rows", func(t *testing.T) {
		path := createTestXLSX(t, [][]string{
			{"Expediente", "Costo"},
			{"", "500"},
		})
		_, err := Validate(path)
		require.ErrorIs(t, err, ErrNoExpedientes)
	})
}
