package sqlite

import "fmt"

// transactionsDDL returns the statements that bootstrap the destination
// table. invoice_date is TEXT in the canonical layout, which sorts
// chronologically for the watermark query.
func transactionsDDL(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	invoice         TEXT NOT NULL,
	stock_code      TEXT NOT NULL,
	description     TEXT,
	quantity        INTEGER NOT NULL,
	invoice_date    TEXT NOT NULL,
	price           REAL NOT NULL,
	customer_id     TEXT,
	country         TEXT NOT NULL,
	line            INTEGER,
	line_total      REAL,
	is_cancellation INTEGER NOT NULL DEFAULT 0
)`, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_watermark ON %s (invoice_date DESC, invoice DESC)", table, table),
	}
}
