package schema

func fptr(v float64) *float64 { return &v }

// Canonical column names used across the pipeline.
const (
	ColInvoice     = "invoice"
	ColStockCode   = "stock_code"
	ColDescription = "description"
	ColQuantity    = "quantity"
	ColInvoiceDate = "invoice_date"
	ColPrice       = "price"
	ColCustomerID  = "customer_id"
	ColCountry     = "country"
	ColLine        = "line" // line position within the invoice, when supplied
)

// Derived columns added by the cleaner.
const (
	ColLineTotal      = "line_total"
	ColIsCancellation = "is_cancellation"
)

// TransactionColumns is the canonical destination column order for loads.
// It covers the contract columns plus the derived ones; the internal cleaned
// marker is never part of it.
func TransactionColumns() []string {
	return []string{
		ColInvoice, ColStockCode, ColDescription, ColQuantity,
		ColInvoiceDate, ColPrice, ColCustomerID, ColCountry,
		ColLine, ColLineTotal, ColIsCancellation,
	}
}

// DefaultContract returns the built-in contract for the online-retail
// dataset. Pipelines can override it with schema.path in their config.
func DefaultContract() Contract {
	return Contract{
		Name: "online_retail",
		Fields: []Field{
			{Name: ColInvoice, Type: TypeString, Required: true, Pattern: `^[A-Za-z]?[0-9]+$`},
			{Name: ColStockCode, Type: TypeString, Required: true},
			{Name: ColDescription, Type: TypeString, Nullable: true, Default: "UNKNOWN"},
			{Name: ColQuantity, Type: TypeInteger, Required: true, Min: fptr(1), Max: fptr(100000)},
			{Name: ColInvoiceDate, Type: TypeDate, Required: true, Layout: "2006-01-02 15:04:05"},
			{Name: ColPrice, Type: TypeDecimal, Required: true, Min: fptr(0.01), Max: fptr(25000)},
			{Name: ColCustomerID, Type: TypeString, Nullable: true, Default: "GUEST"},
			{Name: ColCountry, Type: TypeString, Required: true},
			{Name: ColLine, Type: TypeInteger, Nullable: true},
		},
		HeaderMap: DefaultHeaderMap(),
	}
}

// DefaultHeaderMap maps the header variants seen in the wild onto canonical
// column names. Keys are matched after lowercasing and collapsing runs of
// non-alphanumerics to single underscores.
func DefaultHeaderMap() map[string]string {
	return map[string]string{
		"invoiceno":    ColInvoice,
		"invoice_no":   ColInvoice,
		"invoice":      ColInvoice,
		"stockcode":    ColStockCode,
		"stock_code":   ColStockCode,
		"description":  ColDescription,
		"quantity":     ColQuantity,
		"invoicedate":  ColInvoiceDate,
		"invoice_date": ColInvoiceDate,
		"unitprice":    ColPrice,
		"unit_price":   ColPrice,
		"price":        ColPrice,
		"customerid":   ColCustomerID,
		"customer_id":  ColCustomerID,
		"customer":     ColCustomerID,
		"country":      ColCountry,
		"line":         ColLine,
	}
}
