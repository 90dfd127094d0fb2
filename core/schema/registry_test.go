package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testSchema() TableSchema {
	return TableSchema{
		Name:            "cartes",
		PrimaryKey:      "id",
		MutableColumns:  []string{"nom", "rangement", "contacts", "date_delivrance", "version", "doublon_hash"},
		ExcludedColumns: []string{"doublon_hash"},
		DateColumns:     []string{"date_delivrance"},
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Value
	}{
		{"Text", TextValue("Koffi Jean")},
		{"Number", NumberValue(5)},
		{"Bool", BoolValue(true)},
		{"Null", Null()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			assert.NoError(t, err)

			var out Value
			assert.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, tt.in.Kind, out.Kind)
			assert.Equal(t, tt.in.Any(), out.Any())
		})
	}
}

func TestValue_UnmarshalString(t *testing.T) {
	// Strings always decode as text, even when shaped like a date; only
	// DecodeSnapshot promotes declared date columns.
	for _, raw := range []string{"Abidjan Plateau", "2024-01-02", "2024-05-17T10:30:00Z"} {
		var v Value
		assert.NoError(t, json.Unmarshal([]byte(`"`+raw+`"`), &v))
		assert.Equal(t, KindText, v.Kind)
		assert.Equal(t, raw, v.Text)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	s := testSchema()

	t.Run("Valid", func(t *testing.T) {
		raw := json.RawMessage(`{"id": 4, "nom": "KOUAME", "version": 2, "date_delivrance": null}`)
		cs, err := s.DecodeSnapshot(raw)
		assert.NoError(t, err)
		assert.Len(t, cs, 4)
		assert.Equal(t, KindNumber, cs["id"].Kind)
		assert.True(t, cs["date_delivrance"].IsNull())
	})

	t.Run("Date Column Promoted", func(t *testing.T) {
		raw := json.RawMessage(`{"date_delivrance": "2024-05-17T10:30:00Z"}`)
		cs, err := s.DecodeSnapshot(raw)
		assert.NoError(t, err)
		assert.Equal(t, KindDate, cs["date_delivrance"].Kind)
		assert.Equal(t, time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC), cs["date_delivrance"].Date)
	})

	t.Run("Date-Shaped Text Stays Text", func(t *testing.T) {
		// A storage slot label like "2024-01-02" must come back verbatim.
		raw := json.RawMessage(`{"rangement": "2024-01-02"}`)
		cs, err := s.DecodeSnapshot(raw)
		assert.NoError(t, err)
		assert.Equal(t, KindText, cs["rangement"].Kind)
		assert.Equal(t, "2024-01-02", cs["rangement"].Text)
	})

	t.Run("Unparseable Date", func(t *testing.T) {
		raw := json.RawMessage(`{"date_delivrance": "demain"}`)
		_, err := s.DecodeSnapshot(raw)
		assert.Error(t, err)
	})

	t.Run("Unknown Column", func(t *testing.T) {
		raw := json.RawMessage(`{"nom": "KOUAME", "mot_de_passe": "x"}`)
		_, err := s.DecodeSnapshot(raw)
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := s.DecodeSnapshot(json.RawMessage(`[1,2]`))
		assert.Error(t, err)
	})
}

func TestCompensation(t *testing.T) {
	s := testSchema()

	t.Run("Drops Excluded", func(t *testing.T) {
		cs := Changeset{
			"id":           NumberValue(4),
			"doublon_hash": TextValue("abc"),
			"nom":          TextValue("KOUAME"),
		}
		comp, err := s.Compensation(cs)
		assert.NoError(t, err)
		assert.Len(t, comp, 1)
		assert.Equal(t, "KOUAME", comp["nom"].Text)
	})

	t.Run("Nothing Restorable", func(t *testing.T) {
		cs := Changeset{"id": NumberValue(4), "doublon_hash": TextValue("abc")}
		_, err := s.Compensation(cs)
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(testSchema())

	_, ok := r.Lookup("cartes")
	assert.True(t, ok)
	_, ok = r.Lookup("sites")
	assert.False(t, ok)

	assert.Panics(t, func() { r.Register(testSchema()) })
}

func TestRegistry_Verify(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:schema_verify?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)

	r := NewRegistry()
	r.Register(TableSchema{
		Name:           "cartes",
		PrimaryKey:     "id",
		MutableColumns: []string{"nom", "version"},
	})

	t.Run("Missing Column", func(t *testing.T) {
		assert.NoError(t, db.Exec(`CREATE TABLE cartes (id INTEGER PRIMARY KEY, nom VARCHAR(120))`).Error)
		err := r.Verify(db)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "version")
	})

	t.Run("Complete", func(t *testing.T) {
		assert.NoError(t, db.Exec(`ALTER TABLE cartes ADD COLUMN version INTEGER`).Error)
		assert.NoError(t, r.Verify(db))
	})
}
