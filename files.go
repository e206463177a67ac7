package users

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

//go:embed data/templates
var templatesFS embed.FS

// GetTemplatesFS returns the built-in notification templates
func GetTemplatesFS() embed.FS {
	return templatesFS
}
