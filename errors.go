package schemaform

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Issue codes produced by validation and the save protocol.
const (
	CodeRequired         = "required"
	CodeInvalidType      = "invalid_type"
	CodeInvalidFormat    = "invalid_format"
	CodeUncertainField   = "uncertain_field"
	CodeValidationFailed = "validation_failed"
	CodeDuplicateKey     = "duplicate_key"
)

// Severity expresses the severity level of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue represents a single validation entry about one field of an
// extracted document.
type Issue struct {
	Path     string   `json:"field"` // Field path (for example: items[2].price).
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Actual   any      `json:"actual,omitempty"`
	Expected any      `json:"expected,omitempty"`
}

// Issues is a collection of validation entries that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. required at invoice.po_no
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Errors returns only the entries with error severity.
func (iss Issues) Errors() Issues { return iss.filter(SeverityError) }

// Warnings returns only the entries with warning severity.
func (iss Issues) Warnings() Issues { return iss.filter(SeverityWarning) }

func (iss Issues) filter(s Severity) Issues {
	var out Issues
	for _, it := range iss {
		if it.Severity == s {
			out = append(out, it)
		}
	}
	return out
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// Report is the outcome of validating one document.
type Report struct {
	Issues       Issues    `json:"issues"`
	ErrorCount   int       `json:"errorCount"`
	WarningCount int       `json:"warningCount"`
	ValidatedAt  time.Time `json:"validatedAt"`
}

// NewReport counts issues by severity and stamps the report with the current time.
func NewReport(issues Issues) Report {
	r := Report{Issues: issues, ValidatedAt: time.Now().UTC()}
	for _, it := range issues {
		switch it.Severity {
		case SeverityError:
			r.ErrorCount++
		case SeverityWarning:
			r.WarningCount++
		}
	}
	if r.Issues == nil {
		r.Issues = Issues{}
	}
	return r
}

// Passed reports whether the document has no error-level issues.
func (r Report) Passed() bool { return r.ErrorCount == 0 }
