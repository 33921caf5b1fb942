// Package migrations embeds the schema so the binary can migrate its
// database without files on disk. Import it for side effects.
package migrations

import (
	"embed"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.UseMigrations(files, ".")
}
