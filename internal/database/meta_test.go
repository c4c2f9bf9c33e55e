package database

import (
	"testing"

	"pinvault/internal/pv"
)

func newTestMetaDB(t *testing.T) *MetaDB {
	t.Helper()

	m, err := NewMetaDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create meta database: %v", err)
	}
	t.Cleanup(func() {
		m.Close()
	})
	return m
}

func TestMetaDB_Locations(t *testing.T) {
	m := newTestMetaDB(t)

	locs := []pv.Location{
		{ID: "b", Latitude: 48.8584, Longitude: 2.2945},
		{ID: "a", Latitude: -33.8568, Longitude: 151.2153},
	}
	for _, loc := range locs {
		if err := m.PutLocation(loc); err != nil {
			t.Fatalf("PutLocation(%s) error = %v", loc.ID, err)
		}
	}

	got, err := m.Locations()
	if err != nil {
		t.Fatalf("Locations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Locations() returned %d entries, want 2", len(got))
	}
	if got[0] != locs[1] || got[1] != locs[0] {
		t.Errorf("Locations() = %+v, want ordered by id", got)
	}
}

func TestMetaDB_PutLocationReplaces(t *testing.T) {
	m := newTestMetaDB(t)

	if err := m.PutLocation(pv.Location{ID: "a", Latitude: 1, Longitude: 2}); err != nil {
		t.Fatalf("PutLocation() error = %v", err)
	}
	if err := m.PutLocation(pv.Location{ID: "a", Latitude: 3, Longitude: 4}); err != nil {
		t.Fatalf("PutLocation() error = %v", err)
	}

	got, err := m.Locations()
	if err != nil {
		t.Fatalf("Locations() error = %v", err)
	}
	want := pv.Location{ID: "a", Latitude: 3, Longitude: 4}
	if len(got) != 1 || got[0] != want {
		t.Errorf("Locations() = %+v, want [%+v]", got, want)
	}
}

func TestMetaDB_RejectsOutOfRange(t *testing.T) {
	m := newTestMetaDB(t)
	if err := m.PutLocation(pv.Location{ID: "a", Latitude: 95, Longitude: 0}); err == nil {
		t.Error("PutLocation() expected error for latitude 95")
	}
}

func TestMetaDB_DeleteLocations(t *testing.T) {
	m := newTestMetaDB(t)
	for _, id := range []string{"a", "b"} {
		if err := m.PutLocation(pv.Location{ID: id, Latitude: 1, Longitude: 1}); err != nil {
			t.Fatalf("PutLocation(%s) error = %v", id, err)
		}
	}

	if err := m.DeleteLocations("a"); err != nil {
		t.Fatalf("DeleteLocations() error = %v", err)
	}

	got, err := m.Locations()
	if err != nil {
		t.Fatalf("Locations() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Locations() = %+v, want only b", got)
	}
}
