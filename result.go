package plotforge

import (
	"fmt"
	"time"
)

// Status is the outcome classification of a Result. Statuses are ordered by
// severity: success < partial < failed. Status transitions are monotonic: a
// warning promotes success to partial, any error promotes to failed, and
// failed is absorbing.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// severityRank orders statuses for aggregation. Unknown statuses rank
// highest so they can never mask a real failure.
func severityRank(s Status) int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	default:
		return 3
	}
}

// maxStatus returns the more severe of two statuses.
func maxStatus(a, b Status) Status {
	if severityRank(a) >= severityRank(b) {
		return a
	}
	return b
}

// WarningSeverity grades a recorded warning.
type WarningSeverity string

const (
	SeverityLow    WarningSeverity = "low"
	SeverityMedium WarningSeverity = "medium"
	SeverityHigh   WarningSeverity = "high"
)

// ResultError is one recorded error with optional positional details.
type ResultError struct {
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
}

// ResultWarning is one recorded warning.
type ResultWarning struct {
	Message  string          `json:"message"`
	Severity WarningSeverity `json:"severity"`
}

// Result is the standard envelope returned by every engine operation.
// Its status is monotonic: once an error is recorded the result stays
// failed for its remaining lifetime.
type Result struct {
	Status    Status          `json:"status"`
	Operation string          `json:"operation"`
	Module    string          `json:"module,omitempty"`
	Data      any             `json:"data,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Quality   float64         `json:"quality"`
	CreatedAt time.Time       `json:"createdAt"`
	Duration  time.Duration   `json:"duration"`
	Errors    []ResultError   `json:"errors,omitempty"`
	Warnings  []ResultWarning `json:"warnings,omitempty"`

	// Params is a snapshot of the input parameters the operation ran with.
	Params map[string]any `json:"params,omitempty"`
}

// ResultOption customizes a Result at construction time.
type ResultOption func(*Result)

// WithModule sets the owning module name.
func WithModule(name string) ResultOption {
	return func(r *Result) { r.Module = name }
}

// WithData sets the opaque data payload.
func WithData(data any) ResultOption {
	return func(r *Result) { r.Data = data }
}

// WithStatus sets the initial status. NewResult rejects values outside the
// valid set.
func WithStatus(status Status) ResultOption {
	return func(r *Result) { r.Status = status }
}

// WithParams records a snapshot of the operation's input parameters.
func WithParams(params map[string]any) ResultOption {
	return func(r *Result) { r.Params = params }
}

// NewResult creates a Result for the named operation. The operation name is
// mandatory and the initial status must be one of success, partial, failed.
func NewResult(operation string, opts ...ResultOption) (*Result, error) {
	if operation == "" {
		return nil, ErrOperationEmpty
	}

	r := &Result{
		Status:    StatusSuccess,
		Operation: operation,
		Metadata:  make(map[string]any),
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}

	switch r.Status {
	case StatusSuccess, StatusPartial, StatusFailed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}

	return r, nil
}

// AddError records an error with optional positional details and promotes
// the status to failed. Failed is absorbing; severity never decreases.
func (r *Result) AddError(message string, details ...any) {
	r.Errors = append(r.Errors, ResultError{Message: message, Details: details})
	r.Status = maxStatus(r.Status, StatusFailed)
}

// AddWarning records a warning at the given severity (medium when omitted)
// and promotes a success status to partial. A failed status is never
// downgraded.
func (r *Result) AddWarning(message string, severity ...WarningSeverity) {
	sev := SeverityMedium
	if len(severity) > 0 {
		sev = severity[0]
	}
	r.Warnings = append(r.Warnings, ResultWarning{Message: message, Severity: sev})
	r.Status = maxStatus(r.Status, StatusPartial)
}

// Finalize stamps the elapsed duration since start.
func (r *Result) Finalize(start time.Time) {
	r.Duration = time.Since(start)
}

// IsSuccessful reports whether the result completed cleanly: status is
// success and no errors were recorded.
func (r *Result) IsSuccessful() bool {
	return r.Status == StatusSuccess && len(r.Errors) == 0
}

// ErrorMessages returns the recorded error messages in order.
func (r *Result) ErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// WarningMessages returns the recorded warning messages in order.
func (r *Result) WarningMessages() []string {
	msgs := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		msgs = append(msgs, w.Message)
	}
	return msgs
}

// CombineResults aggregates several results into one under the given
// operation name. The combined status is the maximum severity among inputs,
// error and warning lists are merged in input order, and the data payload
// is the ordered list of each input's data.
func CombineResults(operation string, results []*Result) (*Result, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	combined, err := NewResult(operation)
	if err != nil {
		return nil, err
	}

	data := make([]any, 0, len(results))
	for _, res := range results {
		combined.Status = maxStatus(combined.Status, res.Status)
		combined.Errors = append(combined.Errors, res.Errors...)
		combined.Warnings = append(combined.Warnings, res.Warnings...)
		data = append(data, res.Data)
	}
	combined.Data = data
	combined.Metadata["combined"] = len(results)

	return combined, nil
}
