package mysql

import "fmt"

// transactionsDDL returns the statements that bootstrap the destination
// table. The (invoice_date, invoice) index backs the watermark query; it is
// declared inline because MySQL lacks CREATE INDEX IF NOT EXISTS.
func transactionsDDL(table string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
			"	invoice         VARCHAR(16) NOT NULL,\n"+
			"	stock_code      VARCHAR(32) NOT NULL,\n"+
			"	description     VARCHAR(255),\n"+
			"	quantity        INT NOT NULL,\n"+
			"	invoice_date    DATETIME NOT NULL,\n"+
			"	price           DECIMAL(10,2) NOT NULL,\n"+
			"	customer_id     VARCHAR(16),\n"+
			"	country         VARCHAR(64) NOT NULL,\n"+
			"	line            INT,\n"+
			"	line_total      DECIMAL(12,2),\n"+
			"	is_cancellation TINYINT(1) NOT NULL DEFAULT 0,\n"+
			"	KEY idx_watermark (invoice_date, invoice)\n"+
			")", myIdent(table)),
	}
}
