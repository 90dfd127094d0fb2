package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect(t *testing.T) {
	t.Run("Invalid MySQL Connection", func(t *testing.T) {
		cfg := Config{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     9999, // Unused port
			User:     "root",
			Password: "wrongpassword",
			Name:     "cartes",
		}

		// Connect should fail (timeout or refused)
		db, err := Connect(cfg)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("SQLite In-Memory", func(t *testing.T) {
		cfg := Config{
			Driver: "sqlite",
			Name:   "file:connect_test?mode=memory&cache=shared",
		}

		db, err := Connect(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, db)
	})
}

func TestGetTableColumns_SQLite(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: "file:inspector_test?mode=memory&cache=shared"})
	assert.NoError(t, err)

	err = db.Exec(`CREATE TABLE cartes (id INTEGER PRIMARY KEY, nom VARCHAR(120), version INTEGER)`).Error
	assert.NoError(t, err)

	cols, err := GetTableColumns(db, "cartes")
	assert.NoError(t, err)

	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Field)
	}
	assert.Contains(t, names, "id")
	assert.Contains(t, names, "nom")
	assert.Contains(t, names, "version")
}
