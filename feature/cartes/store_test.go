package cartes

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T, dbName string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func uintPtr(v uint) *uint { return &v }

func TestComputeDoublonHash(t *testing.T) {
	a := ComputeDoublonHash("KOUAME", "Akissi Brigitte", "Abobo")
	b := ComputeDoublonHash(" kouame ", "AKISSI BRIGITTE", "ABOBO ")
	c := ComputeDoublonHash("KOUAME", "Akissi Brigitte", "Yopougon")

	assert.Equal(t, a, b, "hash must ignore case and surrounding whitespace")
	assert.NotEqual(t, a, c)
}

func TestFindByNaturalKey(t *testing.T) {
	db := setupTestDB(t, "store_naturalkey")

	carte := Carte{Nom: "KOUAME", Prenoms: "Akissi", SiteRetrait: "Abobo", Version: 1}
	assert.NoError(t, db.Create(&carte).Error)

	t.Run("Trimmed Match", func(t *testing.T) {
		found, err := FindByNaturalKey(db, "  KOUAME ", "Akissi", " Abobo")
		assert.NoError(t, err)
		assert.NotNil(t, found)
		assert.Equal(t, carte.ID, found.ID)
	})

	t.Run("Absent", func(t *testing.T) {
		found, err := FindByNaturalKey(db, "YAO", "Akissi", "Abobo")
		assert.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestUpdateIfVersion(t *testing.T) {
	db := setupTestDB(t, "store_version")

	carte := Carte{Nom: "YAO", Prenoms: "Jean", SiteRetrait: "Plateau", Version: 1, SiteProprietaireID: uintPtr(2)}
	assert.NoError(t, db.Create(&carte).Error)

	t.Run("Monotonic Increments", func(t *testing.T) {
		// N accepted updates leave version == N + 1.
		for i := 1; i <= 4; i++ {
			newVersion, err := UpdateIfVersion(db, carte.ID, 2, i, map[string]any{"rangement": fmt.Sprintf("R%d", i)})
			assert.NoError(t, err)
			assert.Equal(t, i+1, newVersion)
		}

		var current Carte
		assert.NoError(t, db.First(&current, carte.ID).Error)
		assert.Equal(t, 5, current.Version)
		assert.NotNil(t, current.SyncTimestamp)
	})

	t.Run("Stale Version", func(t *testing.T) {
		_, err := UpdateIfVersion(db, carte.ID, 2, 3, map[string]any{"rangement": "STALE"})
		assert.ErrorIs(t, err, ErrVersionConflict)

		var current Carte
		assert.NoError(t, db.First(&current, carte.ID).Error)
		assert.NotEqual(t, "STALE", current.Rangement)
		assert.Equal(t, 5, current.Version)
	})

	t.Run("Ownership Isolation", func(t *testing.T) {
		// Correct version, wrong site: zero rows touched.
		_, err := UpdateIfVersion(db, carte.ID, 99, 5, map[string]any{"rangement": "PIRATE"})
		assert.ErrorIs(t, err, ErrVersionConflict)

		var current Carte
		assert.NoError(t, db.First(&current, carte.ID).Error)
		assert.NotEqual(t, "PIRATE", current.Rangement)
	})

	t.Run("Does Not Mutate Input Map", func(t *testing.T) {
		changes := map[string]any{"rangement": "R9"}
		_, err := UpdateIfVersion(db, carte.ID, 2, 5, changes)
		assert.NoError(t, err)
		assert.Len(t, changes, 1)
	})
}

func TestDeleteOwned(t *testing.T) {
	db := setupTestDB(t, "store_delete")

	carte := Carte{Nom: "KONE", Prenoms: "Mariam", SiteRetrait: "Cocody", Version: 3, SiteProprietaireID: uintPtr(4)}
	assert.NoError(t, db.Create(&carte).Error)

	t.Run("Wrong Owner", func(t *testing.T) {
		affected, err := DeleteOwned(db, carte.ID, 5)
		assert.NoError(t, err)
		assert.Zero(t, affected)
	})

	t.Run("Owner Deletes Without Version Check", func(t *testing.T) {
		affected, err := DeleteOwned(db, carte.ID, 4)
		assert.NoError(t, err)
		assert.EqualValues(t, 1, affected)
	})
}

func TestSiteActifPersistence(t *testing.T) {
	db := setupTestDB(t, "store_site_actif")

	t.Run("Deactivation Is Stored", func(t *testing.T) {
		inactive := false
		site := Site{ID: 7, Nom: "Bouake", ApiKey: "cle", Actif: &inactive}
		assert.NoError(t, db.Create(&site).Error)

		var stored Site
		assert.NoError(t, db.First(&stored, site.ID).Error)
		assert.NotNil(t, stored.Actif)
		assert.False(t, *stored.Actif)
	})

	t.Run("Unset Defaults To Active", func(t *testing.T) {
		assert.NoError(t, db.Create(&Site{ID: 8, Nom: "Daloa", ApiKey: "cle2"}).Error)

		var stored Site
		assert.NoError(t, db.First(&stored, 8).Error)
		assert.NotNil(t, stored.Actif)
		assert.True(t, *stored.Actif)
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := &Carte{
		ID:                 12,
		Nom:                "KOUAME",
		Prenoms:            "Akissi",
		SiteRetrait:        "Abobo",
		Version:            3,
		SiteProprietaireID: uintPtr(2),
	}

	cs := Snapshot(c)
	s := Schema()

	// Every snapshot column must be either the key or registered mutable.
	for col := range cs {
		if col == s.PrimaryKey {
			continue
		}
		assert.True(t, s.IsMutable(col), "column %s missing from schema", col)
	}

	assert.True(t, cs["date_naissance"].IsNull())
	assert.EqualValues(t, 3, cs["version"].Number)
	assert.EqualValues(t, 2, cs["site_proprietaire_id"].Number)
}
