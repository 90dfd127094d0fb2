package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"carte-manager/core/schema"
	"carte-manager/feature/cartes"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupService(t *testing.T, dbName string) (*Service, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := cartes.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate cartes: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("failed to migrate journal: %v", err)
	}

	registry := schema.NewRegistry()
	registry.Register(cartes.Schema())

	return NewService(db, zap.NewNop(), registry, nil, nil, ""), db
}

func rawSnapshot(t *testing.T, cols map[string]any) json.RawMessage {
	data, err := json.Marshal(cols)
	assert.NoError(t, err)
	return data
}

func TestRecord_Validation(t *testing.T) {
	svc, db := setupService(t, "journal_validation")

	t.Run("Missing Actor", func(t *testing.T) {
		err := svc.Record(db, &Entry{Action: ActionInsert, TableCible: "cartes", RecordID: 1})
		assert.Error(t, err)
	})

	t.Run("Unknown Action", func(t *testing.T) {
		err := svc.Record(db, &Entry{Acteur: "import", Action: "TRUNCATE", TableCible: "cartes", RecordID: 1})
		assert.Error(t, err)
	})

	t.Run("Unregistered Table", func(t *testing.T) {
		err := svc.Record(db, &Entry{Acteur: "import", Action: ActionInsert, TableCible: "users", RecordID: 1})
		assert.Error(t, err)
	})

	t.Run("Valid", func(t *testing.T) {
		entry := &Entry{Acteur: "import", Action: ActionInsert, TableCible: "cartes", RecordID: 1}
		assert.NoError(t, svc.Record(db, entry))
		assert.NotZero(t, entry.ID)
	})
}

func TestUndo_DateShapedTextRestoredVerbatim(t *testing.T) {
	svc, db := setupService(t, "journal_undo_rangement")

	// A storage slot labeled like a date must not come back as a
	// reformatted timestamp.
	carte := cartes.Carte{Nom: "TRAORE", Prenoms: "Issa", SiteRetrait: "Plateau", Rangement: "2024-01-02", Version: 1}
	assert.NoError(t, db.Create(&carte).Error)
	assert.NoError(t, db.Model(&carte).Updates(map[string]any{"rangement": "R7", "version": 2}).Error)

	entry := &Entry{
		Acteur:     "sync",
		Action:     ActionUpdate,
		TableCible: "cartes",
		RecordID:   carte.ID,
		Avant:      rawSnapshot(t, map[string]any{"id": carte.ID, "rangement": "2024-01-02", "version": 1}),
		Apres:      rawSnapshot(t, map[string]any{"id": carte.ID, "rangement": "R7", "version": 2}),
	}
	assert.NoError(t, svc.Record(db, entry))
	assert.NoError(t, svc.Undo(entry.ID, "admin"))

	var restored cartes.Carte
	assert.NoError(t, db.First(&restored, carte.ID).Error)
	assert.Equal(t, "2024-01-02", restored.Rangement)
	assert.Equal(t, 1, restored.Version)
}

func TestUndo_Update(t *testing.T) {
	svc, db := setupService(t, "journal_undo_update")

	carte := cartes.Carte{Nom: "KOUAME", Prenoms: "Akissi", SiteRetrait: "Abobo", Contacts: "0712345678", Version: 2, DoublonHash: "hash-v2"}
	assert.NoError(t, db.Create(&carte).Error)

	// Simulate an accepted merge: contacts replaced, version bumped.
	assert.NoError(t, db.Model(&carte).Updates(map[string]any{"contacts": "+2250712345678", "version": 3, "doublon_hash": "hash-v3"}).Error)

	entry := &Entry{
		Acteur:     "sync",
		Action:     ActionUpdate,
		TableCible: "cartes",
		RecordID:   carte.ID,
		Avant:      rawSnapshot(t, map[string]any{"id": carte.ID, "contacts": "0712345678", "version": 2, "doublon_hash": "hash-v2"}),
		Apres:      rawSnapshot(t, map[string]any{"id": carte.ID, "contacts": "+2250712345678", "version": 3, "doublon_hash": "hash-v3"}),
	}
	assert.NoError(t, svc.Record(db, entry))

	t.Run("Restores Non-Excluded Columns Exactly", func(t *testing.T) {
		assert.NoError(t, svc.Undo(entry.ID, "admin"))

		var current cartes.Carte
		assert.NoError(t, db.First(&current, carte.ID).Error)
		assert.Equal(t, "0712345678", current.Contacts)
		assert.Equal(t, 2, current.Version)
		// Excluded column is never written back.
		assert.Equal(t, "hash-v3", current.DoublonHash)

		var original Entry
		assert.NoError(t, db.First(&original, entry.ID).Error)
		assert.True(t, original.Annulee)
		assert.Equal(t, "admin", original.AnnuleePar)
		assert.NotNil(t, original.AnnuleeAt)

		var annulation Entry
		assert.NoError(t, db.Where("action = ?", ActionAnnulation).First(&annulation).Error)
		assert.NotNil(t, annulation.RefJournalID)
		assert.Equal(t, entry.ID, *annulation.RefJournalID)
	})

	t.Run("Double Undo Rejected", func(t *testing.T) {
		err := svc.Undo(entry.ID, "admin")
		assert.ErrorIs(t, err, ErrAlreadyCancelled)

		// State untouched by the failed attempt.
		var current cartes.Carte
		assert.NoError(t, db.First(&current, carte.ID).Error)
		assert.Equal(t, "0712345678", current.Contacts)
	})
}

func TestUndo_Insert(t *testing.T) {
	svc, db := setupService(t, "journal_undo_insert")

	carte := cartes.Carte{Nom: "YAO", Prenoms: "Marcel", SiteRetrait: "Plateau", Version: 1}
	assert.NoError(t, db.Create(&carte).Error)

	entry := &Entry{
		Acteur:     "import",
		Action:     ActionInsert,
		TableCible: "cartes",
		RecordID:   carte.ID,
		Apres:      rawSnapshot(t, map[string]any{"id": carte.ID, "nom": "YAO"}),
	}
	assert.NoError(t, svc.Record(db, entry))

	assert.NoError(t, svc.Undo(entry.ID, "admin"))

	var count int64
	db.Model(&cartes.Carte{}).Where("id = ?", carte.ID).Count(&count)
	assert.Zero(t, count)

	// Undoing again: entry is annulee, data untouched.
	assert.ErrorIs(t, svc.Undo(entry.ID, "admin"), ErrAlreadyCancelled)
}

func TestUndo_Delete(t *testing.T) {
	svc, db := setupService(t, "journal_undo_delete")

	entry := &Entry{
		Acteur:     "sync",
		Action:     ActionDelete,
		TableCible: "cartes",
		RecordID:   42,
		Avant: rawSnapshot(t, map[string]any{
			"id":           42,
			"nom":          "KONE",
			"prenoms":      "Mariam",
			"site_retrait": "Cocody",
			"version":      4,
		}),
	}
	assert.NoError(t, svc.Record(db, entry))

	assert.NoError(t, svc.Undo(entry.ID, "admin"))

	var restored cartes.Carte
	assert.NoError(t, db.Where("nom = ? AND prenoms = ?", "KONE", "Mariam").First(&restored).Error)
	// Re-inserted under a new key: the original identity is gone.
	assert.NotEqual(t, uint(42), restored.ID)
	assert.Equal(t, 4, restored.Version)
}

func TestUndo_Errors(t *testing.T) {
	svc, db := setupService(t, "journal_undo_errors")

	t.Run("Unknown Entry", func(t *testing.T) {
		assert.ErrorIs(t, svc.Undo(9999, "admin"), ErrEntryNotFound)
	})

	t.Run("Annulation Not Compensable", func(t *testing.T) {
		entry := &Entry{Acteur: "admin", Action: ActionAnnulation, TableCible: "cartes"}
		assert.NoError(t, svc.Record(db, entry))
		assert.ErrorIs(t, svc.Undo(entry.ID, "admin"), ErrNotCompensable)
	})

	t.Run("Target Row Missing", func(t *testing.T) {
		entry := &Entry{Acteur: "import", Action: ActionInsert, TableCible: "cartes", RecordID: 777}
		assert.NoError(t, svc.Record(db, entry))
		assert.ErrorIs(t, svc.Undo(entry.ID, "admin"), ErrRowMissing)
	})
}

func TestAnnulerImport(t *testing.T) {
	svc, db := setupService(t, "journal_annuler_import")

	for i := 0; i < 3; i++ {
		c := cartes.Carte{Nom: fmt.Sprintf("NOM%d", i), Prenoms: "X", SiteRetrait: "Abobo", Version: 1, ImportBatchID: "batch-1"}
		assert.NoError(t, db.Create(&c).Error)
	}
	other := cartes.Carte{Nom: "AUTRE", Prenoms: "Y", SiteRetrait: "Abobo", Version: 1, ImportBatchID: "batch-2"}
	assert.NoError(t, db.Create(&other).Error)

	deleted, err := svc.AnnulerImport("batch-1", "admin")
	assert.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	var remaining int64
	db.Model(&cartes.Carte{}).Count(&remaining)
	assert.EqualValues(t, 1, remaining)

	var summary Entry
	assert.NoError(t, db.Where("action = ?", ActionAnnulationImport).First(&summary).Error)
	assert.Equal(t, "batch-1", summary.BatchID)
}

// fakeStore captures archive uploads in memory.
type fakeStore struct {
	objects map[string][]byte
	buckets map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, buckets: map[string]bool{}}
}

func (f *fakeStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeStore) PutObject(ctx context.Context, bucket, name string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[name] = data
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func (f *fakeStore) GetObject(ctx context.Context, bucket, name string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo)
	close(ch)
	return ch
}

func (f *fakeStore) RemoveObject(ctx context.Context, bucket, name string, opts minio.RemoveObjectOptions) error {
	delete(f.objects, name)
	return nil
}

func TestPrune(t *testing.T) {
	svc, db := setupService(t, "journal_prune")
	store := newFakeStore()
	svc.store = store
	svc.bucket = "cartes-journal"

	old := &Entry{Acteur: "import", Action: ActionInsert, TableCible: "cartes", RecordID: 1}
	assert.NoError(t, svc.Record(db, old))
	assert.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	recent := &Entry{Acteur: "import", Action: ActionInsert, TableCible: "cartes", RecordID: 2}
	assert.NoError(t, svc.Record(db, recent))

	pruned, err := svc.Prune(context.Background(), time.Now().Add(-24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 1, pruned)

	// The archive was written before the delete.
	assert.Len(t, store.objects, 1)
	for _, data := range store.objects {
		var archived []Entry
		assert.NoError(t, json.Unmarshal(data, &archived))
		assert.Len(t, archived, 1)
		assert.Equal(t, old.ID, archived[0].ID)
	}

	var remaining int64
	db.Model(&Entry{}).Count(&remaining)
	assert.EqualValues(t, 1, remaining)

	t.Run("Requires Storage", func(t *testing.T) {
		svc.store = nil
		_, err := svc.Prune(context.Background(), time.Now())
		assert.Error(t, err)
	})
}
