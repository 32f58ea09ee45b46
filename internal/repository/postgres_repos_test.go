package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/plantswap/internal/model"
)

// PostgresCredentialRepoはCredentialRepositoryインターフェースを満たすことを検証
func TestPostgresCredentialRepo_ImplementsInterface(t *testing.T) {
	var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
}

// NewPostgresCredentialRepoが正しく初期化されることを検証
func TestNewPostgresCredentialRepo_Initializes(t *testing.T) {
	repo := NewPostgresCredentialRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// PostgresImageRepoはImageRepositoryインターフェースを満たすことを検証
func TestPostgresImageRepo_ImplementsInterface(t *testing.T) {
	var _ ImageRepository = (*PostgresImageRepo)(nil)
}

// NewPostgresImageRepoが正しく初期化されることを検証
func TestNewPostgresImageRepo_Initializes(t *testing.T) {
	repo := NewPostgresImageRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Imageモデルの所有者フィールドがnil許容であることを検証
func TestPostgresImageRepo_ImageModel_NilOwner(t *testing.T) {
	image := &model.Image{
		Key:        "019235ab-0000-7000-8000-000000000001",
		UploadedAt: time.Now(),
	}

	if image.OwnerID != nil {
		t.Error("uploaded_by_user should be nil by default")
	}
}

// PostgresPlantRepoはPlantRepositoryインターフェースを満たすことを検証
func TestPostgresPlantRepo_ImplementsInterface(t *testing.T) {
	var _ PlantRepository = (*PostgresPlantRepo)(nil)
}

// NewPostgresPlantRepoが正しく初期化されることを検証
func TestNewPostgresPlantRepo_Initializes(t *testing.T) {
	repo := NewPostgresPlantRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Plantモデルのフィールドが正しく構築されることを検証
func TestPostgresPlantRepo_PlantModel_Fields(t *testing.T) {
	gbif := 2765628
	plant := &model.Plant{
		PowoID:    "urn:lsid:ipni.org:names:30000959-2",
		GbifID:    &gbif,
		HumanName: "Swiss cheese plant",
		Species:   "Monstera deliciosa",
	}

	if plant.PowoID != "urn:lsid:ipni.org:names:30000959-2" {
		t.Errorf("plant.PowoID = %q, want %q", plant.PowoID, "urn:lsid:ipni.org:names:30000959-2")
	}
	if plant.GbifID == nil || *plant.GbifID != 2765628 {
		t.Errorf("plant.GbifID = %v, want 2765628", plant.GbifID)
	}
	if plant.Habitat != nil {
		t.Error("habitat should be nil by default")
	}
	if plant.ProducesFruit != nil {
		t.Error("produces_fruit should be nil by default")
	}
}

// PostgresListingRepoはListingRepositoryインターフェースを満たすことを検証
func TestPostgresListingRepo_ImplementsInterface(t *testing.T) {
	var _ ListingRepository = (*PostgresListingRepo)(nil)
}

// NewPostgresListingRepoが正しく初期化されることを検証
func TestNewPostgresListingRepo_Initializes(t *testing.T) {
	repo := NewPostgresListingRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// ListingUpdateのnilフィールドが未変更を意味することを検証
func TestPostgresListingRepo_ListingUpdate_NilFields(t *testing.T) {
	update := &model.ListingUpdate{ID: "listing-id-1"}

	if update.Title != nil || update.Description != nil || update.Type != nil {
		t.Error("all optional fields should be nil by default")
	}
	if update.Thumbnail != nil || update.Tradeable != nil || update.IdentifiedPlant != nil {
		t.Error("all optional fields should be nil by default")
	}
}

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
