package postgres

import "fmt"

// transactionsDDL returns the statements that bootstrap the destination
// table. The (invoice_date, invoice) index backs the watermark query.
func transactionsDDL(table string) []string {
	fq := pgFQN(table)
	idx := pgIdent("idx_" + flatName(table) + "_watermark")
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	invoice         TEXT NOT NULL,
	stock_code      TEXT NOT NULL,
	description     TEXT,
	quantity        INTEGER NOT NULL,
	invoice_date    TIMESTAMP NOT NULL,
	price           NUMERIC(10,2) NOT NULL,
	customer_id     TEXT,
	country         TEXT NOT NULL,
	line            INTEGER,
	line_total      NUMERIC(12,2),
	is_cancellation BOOLEAN NOT NULL DEFAULT FALSE
)`, fq),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (invoice_date DESC, invoice DESC)", idx, fq),
	}
}

func flatName(table string) string {
	out := make([]byte, 0, len(table))
	for i := 0; i < len(table); i++ {
		c := table[i]
		if c == '.' || c == '"' {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}
