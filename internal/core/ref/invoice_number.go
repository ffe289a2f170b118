package ref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hoperx/internal/core/apperror"
)

// invoicePattern matches PREFIX-YYYYMM-SEQUENCE, e.g. "GRN-202608-00042".
var invoicePattern = regexp.MustCompile(`^([A-Z]{2,6})-(\d{6})-(\d{1,10})$`)

// InvoiceNumber is a structured document number: prefix, year-month period
// and a monotonic sequence within that period. Constructed either by
// generation (see pkg/numerator) or parsed from a validated string.
type InvoiceNumber struct {
	prefix   string
	period   string // YYYYMM
	sequence int64
}

// ParseInvoiceNumber validates a raw string against the structural pattern.
func ParseInvoiceNumber(s string) (InvoiceNumber, error) {
	m := invoicePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return InvoiceNumber{}, apperror.NewValidation("invalid invoice number format").
			WithDetail("value", s).
			WithDetail("expected", "PREFIX-YYYYMM-SEQUENCE")
	}

	month, err := strconv.Atoi(m[2][4:])
	if err != nil || month < 1 || month > 12 {
		return InvoiceNumber{}, apperror.NewValidation("invalid invoice number period").
			WithDetail("value", s)
	}

	seq, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil || seq < 1 {
		return InvoiceNumber{}, apperror.NewValidation("invalid invoice number sequence").
			WithDetail("value", s)
	}

	return InvoiceNumber{prefix: m[1], period: m[2], sequence: seq}, nil
}

// NewInvoiceNumber constructs a number from its parts.
func NewInvoiceNumber(prefix string, at time.Time, sequence int64) (InvoiceNumber, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return InvoiceNumber{}, apperror.NewValidation("invoice prefix is required")
	}
	if sequence < 1 {
		return InvoiceNumber{}, apperror.NewValidation("invoice sequence must be positive")
	}
	return InvoiceNumber{
		prefix:   prefix,
		period:   at.Format("200601"),
		sequence: sequence,
	}, nil
}

// Prefix returns the document type prefix.
func (n InvoiceNumber) Prefix() string { return n.prefix }

// Period returns the YYYYMM period string.
func (n InvoiceNumber) Period() string { return n.period }

// Sequence returns the sequence within the period.
func (n InvoiceNumber) Sequence() int64 { return n.sequence }

// String formats the number with a 5-digit padded sequence.
func (n InvoiceNumber) String() string {
	return fmt.Sprintf("%s-%s-%05d", n.prefix, n.period, n.sequence)
}

// IsZero reports whether the number is unset.
func (n InvoiceNumber) IsZero() bool { return n.prefix == "" }
