// Package report renders a finished run as text, CSV, HTML or XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ike-ops/expedientes-cli/internal/model"
)

// exportColumns defines the ordered CSV and XLSX output columns.
var exportColumns = []string{
	"Expediente",
	"Nombre",
	"Costo Guardado",
	"Costo Sistema",
	"Validación",
	"Estatus",
	"Notas",
	"Fecha Registro",
	"Servicio",
	"Subservicio",
	"Error",
}

// Monetary amounts are rendered with Spanish locale grouping.
var printer = message.NewPrinter(language.Spanish)

// FormatText generates a human-readable run summary.
func FormatText(r *model.RunReport) string {
	var b strings.Builder
	s := r.Statistics

	fmt.Fprintf(&b, "# %s\n", r.Title)
	fmt.Fprintf(&b, "ID: %s\n", r.ID)
	fmt.Fprintf(&b, "Generado: %s\n\n", r.CreatedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("## Resumen\n")
	fmt.Fprintf(&b, "- Expedientes: %d\n", s.Total)
	fmt.Fprintf(&b, "- Completados: %d\n", s.Completed)
	fmt.Fprintf(&b, "- Fallidos: %d\n", s.Failed)
	fmt.Fprintf(&b, "- Con costo: %d\n", s.WithCost)
	fmt.Fprintf(&b, "- Activos: %d\n", s.Active)
	fmt.Fprintf(&b, "- Costo total: %s\n", formatMoney(s.TotalCost))
	fmt.Fprintf(&b, "- Tasa de éxito: %.2f%%\n", s.SuccessRate)
	if s.AvgProcessingSeconds > 0 {
		fmt.Fprintf(&b, "- Tiempo promedio: %ds\n", s.AvgProcessingSeconds)
	}
	b.WriteString("\n")

	b.WriteString("## Expedientes\n")
	for _, e := range r.Expedientes {
		cost := "N/A"
		if e.HasCost() {
			cost = formatMoney(*e.Cost)
		}
		fmt.Fprintf(&b, "- %s: %s [%s]", e.ID, cost, e.Validation)
		if e.Error != "" {
			fmt.Fprintf(&b, " (%s)", e.Error)
		}
		b.WriteString("\n")
	}

	if len(r.Metadata) > 0 {
		b.WriteString("\n## Metadatos\n")
		for k, v := range r.Metadata {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}

	return b.String()
}

// ExportCSV writes the run's records as a CSV file.
func ExportCSV(r *model.RunReport, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "report: create csv file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(exportColumns); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, e := range r.Expedientes {
		if err := w.Write(buildRow(e)); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "report: flush csv")
}

// ExportXLSX writes the run's records as a standalone spreadsheet, separate
// from the in-place write-back of the source file.
func ExportXLSX(r *model.RunReport, outputPath string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Reporte")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportColumns {
		header.AddCell().SetString(col)
	}

	for _, e := range r.Expedientes {
		row := sheet.AddRow()
		row.AddCell().SetString(e.ID)
		row.AddCell().SetString(e.Name)
		row.AddCell().SetFloatWithFormat(e.SavedCost.Float64(), "#,##0.00")
		if e.HasCost() {
			row.AddCell().SetFloatWithFormat(e.Cost.Float64(), "#,##0.00")
		} else {
			row.AddCell().SetString("N/A")
		}
		row.AddCell().SetString(string(e.Validation))
		row.AddCell().SetString(e.PortalStatus)
		row.AddCell().SetString(e.Notes)
		row.AddCell().SetString(e.RegistrationDate)
		row.AddCell().SetString(e.Service)
		row.AddCell().SetString(e.Subservice)
		row.AddCell().SetString(e.Error)
	}

	return eris.Wrap(file.Save(outputPath), "report: save xlsx")
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Report.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #f0f0f0; }
</style>
</head>
<body>
<h1>{{.Report.Title}}</h1>
<p>Generado: {{.Report.CreatedAt.Format "2006-01-02 15:04:05"}}</p>
<h2>Resumen</h2>
<ul>
<li>Expedientes: {{.Report.Statistics.Total}}</li>
<li>Completados: {{.Report.Statistics.Completed}}</li>
<li>Fallidos: {{.Report.Statistics.Failed}}</li>
<li>Con costo: {{.Report.Statistics.WithCost}}</li>
<li>Costo total: {{.TotalCost}}</li>
<li>Tasa de éxito: {{printf "%.2f" .Report.Statistics.SuccessRate}}%</li>
</ul>
<h2>Expedientes</h2>
<table>
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

// ExportHTML writes the run as a standalone HTML page.
func ExportHTML(r *model.RunReport, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "report: create html file")
	}
	defer f.Close()

	rows := make([][]string, 0, len(r.Expedientes))
	for _, e := range r.Expedientes {
		rows = append(rows, buildRow(e))
	}

	data := struct {
		Report    *model.RunReport
		Columns   []string
		Rows      [][]string
		TotalCost string
	}{
		Report:    r,
		Columns:   exportColumns,
		Rows:      rows,
		TotalCost: formatMoney(r.Statistics.TotalCost),
	}
	return eris.Wrap(htmlTemplate.Execute(f, data), "report: render html")
}

func buildRow(e *model.Expediente) []string {
	cost := "N/A"
	if e.HasCost() {
		cost = e.Cost.String()
	}
	return []string{
		e.ID,
		e.Name,
		e.SavedCost.String(),
		cost,
		string(e.Validation),
		e.PortalStatus,
		e.Notes,
		e.RegistrationDate,
		e.Service,
		e.Subservice,
		e.Error,
	}
}

func formatMoney(c model.Cents) string {
	whole := int64(c) / 100
	frac := int64(c) % 100
	if frac < 0 {
		frac = -frac
	}
	return printer.Sprintf("$%d.%02d", whole, frac)
}
