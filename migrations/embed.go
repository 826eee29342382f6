// Package migrations embeds the SQL migration files into the binary so
// Fieldline needs no schema files on the filesystem at runtime.
package migrations

import (
	"embed"

	"github.com/fieldline-io/fieldline-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
