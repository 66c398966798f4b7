package csv

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"retailetl/internal/schema"
	"retailetl/pkg/records"
)

/*
TestParse_HeaderCanonicalization verifies that header variants from the
public exports ("InvoiceNo", "Stock Code", "unit_price") all collapse onto
the canonical column keys via the header map.
*/
func TestParse_HeaderCanonicalization(t *testing.T) {
	in := "InvoiceNo,Stock Code,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country\n" +
		"536365,85123A,MUG,6,2010-12-01 08:26:00,2.55,17850,United Kingdom\n"

	p := NewParser(Options{HasHeader: true, HeaderMap: schema.DefaultHeaderMap()})
	rows, skipped, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skipped != 0 || len(rows) != 1 {
		t.Fatalf("rows=%d skipped=%d; want 1/0", len(rows), skipped)
	}

	want := records.Record{
		"invoice":      "536365",
		"stock_code":   "85123A",
		"description":  "MUG",
		"quantity":     "6",
		"invoice_date": "2010-12-01 08:26:00",
		"price":        "2.55",
		"customer_id":  "17850",
		"country":      "United Kingdom",
	}
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("row = %#v\nwant %#v", rows[0], want)
	}
}

func TestCanonicalName(t *testing.T) {
	cases := map[string]string{
		"InvoiceNo":  "invoiceno",
		"Stock Code": "stock_code",
		"unit-price": "unit_price",
		"Country":    "country",
		"a  b":       "a_b",
	}
	for in, want := range cases {
		if got := canonicalName(in); got != want {
			t.Fatalf("canonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

// A UTF-8 BOM on the first header cell must not leak into column keys.
func TestParse_StripsBOM(t *testing.T) {
	in := "\uFEFFInvoiceNo,Country\n1001,France\n"
	p := NewParser(Options{HasHeader: true, HeaderMap: schema.DefaultHeaderMap()})
	rows, _, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rows[0]["invoice"] != "1001" {
		t.Fatalf("BOM header not canonicalized: %#v", rows[0])
	}
}

// Empty cells decode to nil, not "".
func TestParse_EmptyCellIsNil(t *testing.T) {
	in := "invoice,customer_id,country\n1001,,France\n"
	p := NewParser(Options{HasHeader: true})
	rows, _, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := rows[0]["customer_id"]; !ok || v != nil {
		t.Fatalf("customer_id = %#v, want present nil", v)
	}
}

/*
TestParse_SkipsMalformedRows checks soft-fail behavior: rows with the wrong
field count are counted and skipped while the rest of the file parses.
*/
func TestParse_SkipsMalformedRows(t *testing.T) {
	in := "invoice,country\n" +
		"1001,France\n" +
		"1002,Germany,EXTRA\n" +
		"1003,Spain\n"

	p := NewParser(Options{HasHeader: true})
	rows, skipped, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 || skipped != 1 {
		t.Fatalf("rows=%d skipped=%d; want 2/1", len(rows), skipped)
	}
}

/*
TestParse_Windows1252 decodes a Windows-1252 byte stream. 0xC9 is "É" in
CP1252 and invalid on its own in UTF-8.
*/
func TestParse_Windows1252(t *testing.T) {
	raw := []byte("invoice,description\n1001,CAF\xc9 SET\n")
	p := NewParser(Options{HasHeader: true, Encoding: "windows-1252"})
	rows, _, err := p.Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := rows[0]["description"]; got != "CAFÉ SET" {
		t.Fatalf("description = %#v, want CAFÉ SET", got)
	}
}

func TestParse_UnknownEncoding(t *testing.T) {
	p := NewParser(Options{HasHeader: true, Encoding: "ebcdic"})
	if _, _, err := p.Parse(strings.NewReader("a,b\n")); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

// Without a header, ExpectedFields synthesizes col_N keys and enforces width.
func TestParse_NoHeader(t *testing.T) {
	in := "1001,France\n1002\n"
	p := NewParser(Options{ExpectedFields: 2})
	rows, skipped, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 || skipped != 1 {
		t.Fatalf("rows=%d skipped=%d; want 1/1", len(rows), skipped)
	}
	if rows[0]["col_0"] != "1001" || rows[0]["col_1"] != "France" {
		t.Fatalf("row = %#v", rows[0])
	}
}
