package validate

// IssueCode is the closed set of row validation failures.
type IssueCode int

const (
	RequiredFieldMissing IssueCode = iota
	FormatInvalid
	DateInvalid
	CodeUnknown
	TerminalInvalid
	CapacityImplausible
)

// String returns a stable identifier for the issue code.
func (c IssueCode) String() string {
	switch c {
	case RequiredFieldMissing:
		return "required_field_missing"
	case FormatInvalid:
		return "format_invalid"
	case DateInvalid:
		return "date_invalid"
	case CodeUnknown:
		return "code_unknown"
	case TerminalInvalid:
		return "terminal_invalid"
	case CapacityImplausible:
		return "capacity_implausible"
	default:
		return "unknown"
	}
}

// Severity grades an issue. Warnings never invalidate a row.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String returns a human-readable representation of the severity.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue is one validation finding on one row. Field identifies the offending
// column and Kind qualifies CodeUnknown issues (airline, airport, type).
type Issue struct {
	Code     IssueCode
	Severity Severity
	Field    string
	Kind     string
	Message  string
}
