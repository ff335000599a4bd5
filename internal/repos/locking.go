package repos

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate row-locks guard selects on Postgres. SQLite (tests) has no
// FOR UPDATE; there the whole database serializes writes anyway.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
