// Package models holds the gorm-mapped records of the back office.
package models

// All returns every model managed by AutoMigrate, parents first.
func All() []any {
	return []any{&User{}, &Product{}, &Invoice{}, &LineItem{}}
}
