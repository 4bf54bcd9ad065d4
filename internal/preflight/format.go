package preflight

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

// TextFormatter writes human-readable preflight output.
type TextFormatter struct {
	color bool
}

// NewTextFormatter creates a text formatter with optional ANSI color.
func NewTextFormatter(color bool) *TextFormatter {
	return &TextFormatter{color: color}
}

func (f *TextFormatter) Format(w io.Writer, report *Report) error {
	crit, warn, info := report.Counts()

	fmt.Fprintf(w, "%sfloxrun preflight%s — %d checks, %d findings\n\n",
		f.c(colorBold), f.c(colorReset), len(report.Checked), len(report.Findings))

	for _, finding := range report.Findings {
		fmt.Fprintf(w, "  %s  %-15s %s\n", f.severityLabel(finding.Severity), finding.Check, finding.Message)
		if finding.Hint != "" {
			fmt.Fprintf(w, "  %s          → %s%s\n", f.c(colorDim), finding.Hint, f.c(colorReset))
		}
	}
	if len(report.Findings) > 0 {
		fmt.Fprintln(w)
	}

	parts := []string{fmt.Sprintf("%d checks", len(report.Checked))}
	if crit > 0 {
		parts = append(parts, fmt.Sprintf("%s%d critical%s", f.c(colorRed), crit, f.c(colorReset)))
	}
	if warn > 0 {
		parts = append(parts, fmt.Sprintf("%s%d warning%s", f.c(colorYellow), warn, f.c(colorReset)))
	}
	if info > 0 {
		parts = append(parts, fmt.Sprintf("%s%d info%s", f.c(colorDim), info, f.c(colorReset)))
	}
	fmt.Fprintf(w, "Summary: %s\n", strings.Join(parts, ", "))

	if report.HasCritical() {
		fmt.Fprintf(w, "%sA run would fail. Fix the critical findings first.%s\n", f.c(colorRed), f.c(colorReset))
	} else {
		fmt.Fprintf(w, "%sReady to run.%s\n", f.c(colorGreen), f.c(colorReset))
	}

	return nil
}

func (f *TextFormatter) c(code string) string {
	if !f.color {
		return ""
	}
	return code
}

func (f *TextFormatter) severityLabel(s Severity) string {
	switch s {
	case SeverityCritical:
		return fmt.Sprintf("%sCRITICAL%s", f.c(colorRed), f.c(colorReset))
	case SeverityWarning:
		return fmt.Sprintf("%sWARNING %s", f.c(colorYellow), f.c(colorReset))
	case SeverityInfo:
		return fmt.Sprintf("%sinfo    %s", f.c(colorDim), f.c(colorReset))
	default:
		return "unknown "
	}
}

// JSONFormatter writes the preflight report as JSON.
type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter { return &JSONFormatter{} }

func (f *JSONFormatter) Format(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
