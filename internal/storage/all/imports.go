// Package all registers every built-in storage backend. It exists only for
// its blank imports: each backend's init adds its factory and DDL
// bootstrapper to the storage registry, making "postgres", "mysql", "mssql",
// and "sqlite" resolvable through storage.New. The CLI imports this package
// once; everything else stays on the storage abstraction.
package all

import (
	_ "retailetl/internal/storage/mssql"
	_ "retailetl/internal/storage/mysql"
	_ "retailetl/internal/storage/postgres"
	_ "retailetl/internal/storage/sqlite"
)
