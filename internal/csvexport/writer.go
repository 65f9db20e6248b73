package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dealscope/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the scorecard header row.
var columns = []string{
	"Company",
	"Analysis ID",
	"Dimension",
	"Dimension Score",
	"Weight",
	"Factor",
	"Points",
	"Max Points",
	"Achieved",
	"Overall",
	"Decision",
	"Low Data",
}

// Writer wraps csv.Writer for exporting report scorecards as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteReport writes one row per scoring factor of the report. A dimension without
// factors still gets a row so its score is visible.
func (w *Writer) WriteReport(report *domain.InvestmentReport) error {
	for i := range report.Dimensions {
		d := &report.Dimensions[i]
		if len(d.Factors) == 0 {
			if err := w.csv.Write(factorToRow(report, d, nil)); err != nil {
				return err
			}
			continue
		}
		for j := range d.Factors {
			if err := w.csv.Write(factorToRow(report, d, &d.Factors[j])); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func factorToRow(report *domain.InvestmentReport, d *domain.DimensionScore, f *domain.ScoringFactor) []string {
	row := make([]string, len(columns))
	row[0] = CompanyName(report)
	row[1] = report.AnalysisID.String()
	row[2] = string(d.Dimension)
	row[3] = strconv.Itoa(d.RawScore)
	row[4] = strconv.FormatFloat(d.Weight, 'f', 2, 64)
	row[9] = strconv.Itoa(report.Overall)
	row[10] = string(report.Decision)
	row[11] = formatBool(report.LowData)

	if f != nil {
		row[5] = f.Name
		row[6] = strconv.Itoa(f.Points)
		row[7] = strconv.Itoa(f.MaxPoints)
		row[8] = formatBool(f.Achieved)
	}
	return row
}

// CompanyName returns the consolidated company name, or an empty string.
func CompanyName(report *domain.InvestmentReport) string {
	if report.Profile == nil || report.Profile.Company.Name == nil {
		return ""
	}
	return *report.Profile.Company.Name
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a company name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for the Content-Disposition header.
// Format: {company}_{YYYY-MM-DD}.csv, with "analysis" when the company is unknown.
func BuildFilename(companyName string, at time.Time) string {
	sanitized := SanitizeFilename(companyName)
	if sanitized == "" {
		sanitized = "analysis"
	}
	return fmt.Sprintf("%s_%s.csv", sanitized, at.Format("2006-01-02"))
}
