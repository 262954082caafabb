// Package migrations compiles the SQL schema files into the binary so the
// service can migrate its store without shipping loose .sql files.
package migrations

import (
	"embed"

	"github.com/openfab-labs/acs-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Importing this package (blank import from main) registers the embedded
// schema with the database layer.
func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
