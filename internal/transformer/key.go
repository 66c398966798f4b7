package transformer

import (
	"strings"

	"github.com/zeebo/xxh3"

	"retailetl/internal/schema"
	"retailetl/pkg/records"
)

// naturalKeySep joins key parts; \x1f cannot occur in CSV field values that
// survive parsing, so concatenation is unambiguous.
const naturalKeySep = "\x1f"

// NaturalKeyFields is the business key used for intra-batch duplicate
// detection: invoice + stock code + line position. It is deliberately a
// package constant, not configuration, because tests and the duplicate rule
// depend on the exact key.
var NaturalKeyFields = []string{schema.ColInvoice, schema.ColStockCode, schema.ColLine}

// NaturalKey hashes the row's business key. ok is false when the invoice or
// stock code is absent, in which case the row is outside the duplicate
// domain (it will be rejected as missing_required anyway).
func NaturalKey(r records.Record) (uint64, bool) {
	if r.String(schema.ColInvoice) == "" || r.String(schema.ColStockCode) == "" {
		return 0, false
	}
	var b strings.Builder
	for i, f := range NaturalKeyFields {
		if i > 0 {
			b.WriteString(naturalKeySep)
		}
		b.WriteString(strings.TrimSpace(r.String(f)))
	}
	return xxh3.HashString(b.String()), true
}
