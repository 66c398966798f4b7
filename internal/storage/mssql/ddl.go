package mssql

import "fmt"

// transactionsDDL returns the statements that bootstrap the destination
// table. SQL Server has no CREATE TABLE IF NOT EXISTS, so existence is
// guarded with OBJECT_ID checks.
func transactionsDDL(table string) []string {
	fqn := msFQN(table)
	idx := "idx_" + flatName(table) + "_watermark"
	return []string{
		fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
	invoice         NVARCHAR(16) NOT NULL,
	stock_code      NVARCHAR(32) NOT NULL,
	description     NVARCHAR(255),
	quantity        INT NOT NULL,
	invoice_date    DATETIME2 NOT NULL,
	price           DECIMAL(10,2) NOT NULL,
	customer_id     NVARCHAR(32),
	country         NVARCHAR(64) NOT NULL,
	line            INT,
	line_total      DECIMAL(12,2),
	is_cancellation BIT NOT NULL DEFAULT 0
)`, table, fqn),
		fmt.Sprintf(`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s'))
CREATE INDEX %s ON %s (invoice_date DESC, invoice DESC)`, idx, table, msIdent(idx), fqn),
	}
}

// flatName replaces dots in a schema-qualified name so it can be embedded in
// an index identifier.
func flatName(table string) string {
	out := make([]byte, 0, len(table))
	for i := 0; i < len(table); i++ {
		c := table[i]
		if c == '.' {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}
