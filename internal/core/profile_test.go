package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProfileStore_SetGetUse(t *testing.T) {
	store := NewProfileStore(filepath.Join(t.TempDir(), "credentials.json"))

	if err := store.Set(Profile{Name: "work", Credentials: Credentials{APIKey: "k1", OrganizationID: "o1"}}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := store.Set(Profile{Name: "home", Credentials: Credentials{APIKey: "k2", OrganizationID: "o2"}}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	// First profile written becomes active.
	active, err := store.Get("")
	if err != nil {
		t.Fatalf("Get(\"\") error: %v", err)
	}
	if active.Name != "work" || active.APIKey != "k1" {
		t.Errorf("active = %+v, want work/k1", active)
	}

	if err := store.Use("home"); err != nil {
		t.Fatalf("Use() error: %v", err)
	}
	profiles, activeName, err := store.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if activeName != "home" {
		t.Errorf("active = %q, want \"home\"", activeName)
	}
	if len(profiles) != 2 || profiles[0].Name != "home" || profiles[1].Name != "work" {
		t.Errorf("profiles = %+v, want sorted [home work]", profiles)
	}
}

func TestProfileStore_UseUnknown(t *testing.T) {
	store := NewProfileStore(filepath.Join(t.TempDir(), "credentials.json"))
	err := store.Use("missing")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Use() error = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileStore_ParsesJSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	content := `{
  // hand-edited
  "active": "ci",
  "profiles": {
    "ci": {"api_key": "abc", "organization_id": "org-1",},
  },
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := NewProfileStore(path).Get("")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.Name != "ci" || p.APIKey != "abc" || p.OrganizationID != "org-1" {
		t.Errorf("profile = %+v", p)
	}
}

func TestProfileStore_ResolveEnvOverride(t *testing.T) {
	store := NewProfileStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err := store.Set(Profile{Name: "default", Credentials: Credentials{APIKey: "file-key", OrganizationID: "file-org"}}); err != nil {
		t.Fatal(err)
	}
	t.Setenv(APIKeyEnv, "env-key")

	p, err := store.Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if p.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want \"env-key\"", p.APIKey)
	}
	if p.OrganizationID != "file-org" {
		t.Errorf("OrganizationID = %q, want \"file-org\"", p.OrganizationID)
	}
}

func TestProfileStore_ResolveMissingProfile(t *testing.T) {
	store := NewProfileStore(filepath.Join(t.TempDir(), "credentials.json"))

	// No file and no env: the active default profile is simply empty.
	p, err := store.Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") error: %v", err)
	}
	if p.Complete() {
		t.Errorf("expected incomplete credentials, got %+v", p)
	}

	// An explicitly named, missing profile is an error.
	if _, err := store.Resolve("nope"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Resolve(\"nope\") error = %v, want ErrProfileNotFound", err)
	}
}
