package migrations

import "embed"

// Files exposes embedded SQL migration files. Each driver has its own directory
// and files inside it are applied in lexicographical order.
//
//go:embed postgres/*.sql sqlite/*.sql
var Files embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
