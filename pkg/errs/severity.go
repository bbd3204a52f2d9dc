package errs

// Severity is the alerting level of an error category.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityError:
		return "error"
	}
	return "warning"
}

func severityOf(c Category) Severity {
	switch c {
	case CategoryDataConsistency, CategorySystem:
		return SeverityCritical
	case CategoryAIProcessing, CategoryUI:
		return SeverityError
	}
	return SeverityWarning
}

// SeverityOf returns the severity of err; untyped errors are treated as
// unknown system errors.
func SeverityOf(err error) Severity {
	if e, ok := As(err); ok {
		return e.Severity()
	}
	return SeverityCritical
}
