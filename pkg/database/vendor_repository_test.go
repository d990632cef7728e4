package database

import (
	"testing"
)

func TestVendorRepository_UpsertAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewVendorRepository(db.GetDB())

	vendors := []Vendor{
		{OUI: 0x001a7d, UAP: 0x7d, Organization: "cyber-blue(HK)Ltd", Registry: "MA-L"},
		{OUI: 0x00037d, UAP: 0x7d, Organization: "Stellcom", Registry: "MA-L"},
		{OUI: 0x001b47, UAP: 0x47, Organization: "Futarque A/S", Registry: "MA-L"},
	}
	if err := repo.UpsertBatch(vendors, 2); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected 3 vendors, got %d", count)
	}

	got, err := repo.GetByUAP(0x7d, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 vendors for UAP 0x7d, got %d", len(got))
	}
	if got[0].Organization != "Stellcom" {
		t.Errorf("Expected vendors ordered by name, got %s first", got[0].Organization)
	}

	// Upsert replaces the existing row
	if err := repo.Upsert(&Vendor{OUI: 0x001b47, UAP: 0x47, Organization: "Renamed"}); err != nil {
		t.Fatal(err)
	}
	v, err := repo.GetByOUI(0x001b47)
	if err != nil {
		t.Fatal(err)
	}
	if v.Organization != "Renamed" {
		t.Errorf("Expected updated organization, got %s", v.Organization)
	}
	if count, _ := repo.Count(); count != 3 {
		t.Errorf("Upsert should not add rows, have %d", count)
	}

	if _, err := repo.GetByOUI(0xffffff); err == nil {
		t.Error("Expected error for unknown OUI")
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatal(err)
	}
	if count, _ := repo.Count(); count != 0 {
		t.Errorf("Expected empty table, have %d", count)
	}
}

func TestVendorRepository_EmptyBatch(t *testing.T) {
	db := newTestDB(t)
	repo := NewVendorRepository(db.GetDB())
	if err := repo.UpsertBatch(nil, 100); err != nil {
		t.Errorf("Expected nil error for empty batch, got %v", err)
	}
}
