// Package transformer implements the row classification (validator) and
// repair (cleaner) stages of the retail pipeline. Validation is read-only;
// cleaning mutates rows in place and emits an audit trail.
package transformer

import "retailetl/pkg/records"

// VerdictCode tags a row's classification.
type VerdictCode int

const (
	Valid VerdictCode = iota
	Repairable
	Rejected
)

func (c VerdictCode) String() string {
	switch c {
	case Valid:
		return "valid"
	case Repairable:
		return "repairable"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Rejection / repair reasons. These are stable identifiers consumed by the
// rejected-rows report and by tests.
const (
	ReasonMissingRequired = "missing_required"
	ReasonTypeMismatch    = "type_mismatch"
	ReasonUncoercible     = "uncoercible"
	ReasonConstraint      = "constraint_violation"
	ReasonDuplicate       = "intra_batch_duplicate"
)

// Verdict is the per-row classification produced once by the validator and
// consumed by the cleaner.
type Verdict struct {
	Code   VerdictCode
	Reason string // set for Repairable and Rejected
	Field  string // offending column, "" for row-level reasons
}

// Tagged pairs a row with its verdict. Index is the row's position in the
// input batch; the cleaner uses it as the audit row ID and the planner
// relies on it only through preserved slice order.
type Tagged struct {
	Index   int
	Row     records.Record
	Verdict Verdict
}

// RejectedRow is an entry in the final rejected-rows report.
type RejectedRow struct {
	Index  int            `json:"row"`
	Row    records.Record `json:"record"`
	Reason string         `json:"reason"`
	Field  string         `json:"field,omitempty"`
}

// Change is a single transformation audit record: one changed value, the
// rule that changed it. The batch-scoped audit log is append-only.
type Change struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
	Rule   string `json:"rule"`
}

// Rules recorded in the audit trail.
const (
	RuleTrim          = "trim_whitespace"
	RuleUppercase     = "uppercase_code"
	RuleNormalizeDate = "normalize_date"
	RuleFillDefault   = "fill_default"
	RuleCoerce        = "type_coercion"
	RuleClampFloor    = "clamp_floor"
	RuleClampCeiling  = "clamp_ceiling"
	RuleCancellation  = "cancellation_retained"
	RuleDropDuplicate = "drop_intra_batch_duplicate"
)
