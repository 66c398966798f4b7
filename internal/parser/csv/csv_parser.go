// Package csv implements a streaming CSV parser for raw transaction exports.
// It canonicalizes header names, decodes legacy single-byte encodings on the
// fly, and soft-fails malformed rows instead of aborting the run. It avoids
// whole-file buffering and can handle very large inputs safely.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"retailetl/pkg/records"
)

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing ASCII spaces from each field value.
	TrimSpace bool

	// ExpectedFields, when > 0, enforces a fixed field count per record. Rows
	// with a different width are skipped (soft-fail) and counted.
	ExpectedFields int

	// HeaderMap maps source header names to canonical column keys. Lookups
	// are attempted on the raw header first, then on its canonical form
	// (lowercased, non-alphanumeric runs collapsed to underscores). Only
	// applies when HasHeader is true.
	HeaderMap map[string]string

	// Encoding names the source byte encoding ("utf-8", "windows-1252",
	// "latin-1", "iso-8859-1"). Empty means UTF-8 passthrough. The public
	// export of the retail dataset ships as Windows-1252.
	Encoding string
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Parse consumes CSV records from r and returns the parsed rows along with the
// number of rows that were skipped due to parse errors or field-count
// mismatches. Empty cells decode to nil so downstream stages can distinguish
// absent from blank-but-present values.
func (p *Parser) Parse(r io.Reader) ([]records.Record, int, error) {
	r, err := decodeReader(r, p.opt.Encoding)
	if err != nil {
		return nil, 0, err
	}

	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	// Width is enforced after read so mismatches soft-fail per row instead
	// of aborting the whole file.
	cr.FieldsPerRecord = -1

	var headers []string
	var out []records.Record
	var skipped int

	if p.opt.HasHeader {
		h, err := cr.Read()
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = canonicalHeaders(h, p.opt.HeaderMap)
	} else if p.opt.ExpectedFields > 0 {
		headers = make([]string, p.opt.ExpectedFields)
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i)
		}
	}

	limit := 400
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < limit {
				log.Printf("Skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}

		if len(headers) > 0 && len(row) != len(headers) {
			if skipped < limit {
				log.Printf("Skipping row %d: incorrect number of fields (expected %d, got %d)", line, len(headers), len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[keyFor(i, headers)] = emptyToNil(val)
		}
		out = append(out, rec)
	}

	return out, skipped, nil
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// canonicalHeaders produces canonical column keys. Each header is trimmed
// (and BOM-stripped in the first cell), looked up in headerMap as-is, then
// canonicalized and looked up again; unmapped headers keep their canonical
// form. "InvoiceNo", "invoice no", and "invoice_no" all land on the same key.
func canonicalHeaders(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := headerMap[c]; ok {
			res[i] = m
			continue
		}
		canon := canonicalName(c)
		if m, ok := headerMap[canon]; ok {
			res[i] = m
			continue
		}
		res[i] = canon
	}
	return res
}

// canonicalName lowercases a header and collapses every run of
// non-alphanumeric characters to a single underscore.
func canonicalName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
