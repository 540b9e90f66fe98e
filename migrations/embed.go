// Package migrations embeds the SEP2 Core SQL migrations into the binary
// and registers them with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/sep2-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
