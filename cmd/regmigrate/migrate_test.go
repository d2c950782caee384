package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/go-oidfed/registrar/storage"
	"github.com/go-oidfed/registrar/storage/model"
)

const legacySchema = `
CREATE TABLE signing_keys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kid TEXT UNIQUE NOT NULL,
	key_type TEXT NOT NULL,
	private_key TEXT NOT NULL,
	public_key TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	is_active BOOLEAN DEFAULT 1
);
CREATE TABLE entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id TEXT UNIQUE NOT NULL,
	entity_type TEXT NOT NULL,
	metadata TEXT NOT NULL,
	jwks TEXT NOT NULL,
	registered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	status TEXT DEFAULT 'active'
);
CREATE TABLE validation_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_name TEXT UNIQUE NOT NULL,
	entity_type TEXT NOT NULL,
	field_path TEXT NOT NULL,
	validation_type TEXT NOT NULL,
	validation_value TEXT,
	error_message TEXT,
	is_active BOOLEAN DEFAULT 1
);
`

func legacyKeyPEMs(t *testing.T) (string, string) {
	t.Helper()
	sk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(sk)
	if err != nil {
		t.Fatalf("failed to marshal private key: %v", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&sk.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv})),
		string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))
}

func newLegacyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create legacy db: %v", err)
	}
	exec := func(sql string, values ...any) {
		t.Helper()
		if err := db.Exec(sql, values...).Error; err != nil {
			t.Fatalf("legacy db statement failed: %v", err)
		}
	}
	exec(legacySchema)

	oldPriv, oldPub := legacyKeyPEMs(t)
	newPriv, newPub := legacyKeyPEMs(t)
	insertKey := "INSERT INTO signing_keys (kid, key_type, private_key, public_key, created_at, is_active) VALUES (?, ?, ?, ?, ?, ?)"
	exec(insertKey, "legacy-old", "RSA", oldPriv, oldPub, "2024-01-01 10:00:00", 0)
	exec(insertKey, "legacy-new", "RSA", newPriv, newPub, "2024-06-01 10:00:00", 1)
	exec(insertKey, "legacy-broken", "RSA", "garbage", "garbage", "2023-01-01 10:00:00", 0)

	insertEntity := "INSERT INTO entities (entity_id, entity_type, metadata, jwks, status) VALUES (?, ?, ?, ?, ?)"
	exec(
		insertEntity, "https://op.example.com", "OP",
		`{"openid_provider":{"issuer":"https://op.example.com"}}`, `{"keys":[]}`, "active",
	)
	exec(insertEntity, "https://rp.example.com", "RP", `{}`, `{"keys":[]}`, "suspended")
	exec(insertEntity, "https://broken.example.com", "XX", `{}`, `{}`, "active")

	insertRule := "INSERT INTO validation_rules (rule_name, entity_type, field_path, validation_type, validation_value, error_message, is_active) VALUES (?, ?, ?, ?, ?, ?, ?)"
	exec(insertRule, "op_issuer", "OP", "metadata.openid_provider.issuer", "required", nil, "issuer missing", 1)
	exec(insertRule, "https_only", "BOTH", "entity_id", "regex", "^https://", nil, 0)
	exec(insertRule, "bad_regex", "RP", "entity_id", "regex", "([", nil, 1)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	_ = sqlDB.Close()
	return path
}

func newDestination(t *testing.T) *storage.Storage {
	t.Helper()
	dst, err := storage.NewStorage(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	if err != nil {
		t.Fatalf("failed to create destination: %v", err)
	}
	return dst
}

func runMigration(t *testing.T, src string, dst *storage.Storage, dryRun, promote bool) map[string]report {
	t.Helper()
	legacy, err := openLegacyDB(src)
	if err != nil {
		t.Fatalf("failed to open legacy db: %v", err)
	}
	defer legacy.Close()
	m := &migrator{
		src:     legacy,
		dst:     dst,
		dryRun:  dryRun,
		promote: promote,
	}
	reports, err := m.run()
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return reports
}

func TestMigrate(t *testing.T) {
	src := newLegacyDB(t)
	dst := newDestination(t)

	reports := runMigration(t, src, dst, false, false)
	if r := reports["keys"]; r.Imported != 2 || r.Failed != 1 {
		t.Errorf("unexpected keys report %+v", r)
	}
	if r := reports["entities"]; r.Imported != 2 || r.Failed != 1 {
		t.Errorf("unexpected entities report %+v", r)
	}
	if r := reports["rules"]; r.Imported != 2 || r.Failed != 1 {
		t.Errorf("unexpected rules report %+v", r)
	}

	active, err := dst.SigningKeyStorage().Active()
	if err != nil || active == nil {
		t.Fatalf("expected an active key, got %v, %v", active, err)
	}
	if active.KID != "legacy-new" || active.Algorithm != "RS256" {
		t.Errorf("unexpected active key %s/%s", active.KID, active.Algorithm)
	}
	all, err := dst.SigningKeyStorage().All()
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 keys, got %d, %v", len(all), err)
	}

	rp, err := dst.EntityStorage().Get("https://rp.example.com")
	if err != nil || rp == nil {
		t.Fatalf("expected the rp to be imported, got %v, %v", rp, err)
	}
	if rp.Status != model.StatusSuspended || rp.EntityType != model.EntityTypeRP {
		t.Errorf("unexpected rp %+v", rp)
	}
	op, _ := dst.EntityStorage().Get("https://op.example.com")
	if op == nil {
		t.Fatal("expected the op to be imported")
	}
	provider, _ := op.Metadata["openid_provider"].(map[string]any)
	if provider["issuer"] != "https://op.example.com" {
		t.Errorf("unexpected op metadata %v", op.Metadata)
	}

	rules, err := dst.ValidationRuleStorage().List("", false)
	if err != nil || len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d, %v", len(rules), err)
	}
	for _, rule := range rules {
		if rule.RuleName == "https_only" && rule.IsActive {
			t.Error("inactive legacy rule must stay inactive")
		}
		if rule.RuleName == "op_issuer" && rule.ErrorMessage != "issuer missing" {
			t.Errorf("unexpected error message %q", rule.ErrorMessage)
		}
	}

	again := runMigration(t, src, dst, false, false)
	for step, r := range again {
		if r.Imported != 0 || r.Skipped != 2 {
			t.Errorf("%s: rerun must skip migrated rows, got %+v", step, r)
		}
	}
}

func TestMigrateDryRun(t *testing.T) {
	src := newLegacyDB(t)
	dst := newDestination(t)

	reports := runMigration(t, src, dst, true, false)
	if r := reports["entities"]; r.Imported != 2 {
		t.Errorf("unexpected entities report %+v", r)
	}
	all, err := dst.SigningKeyStorage().All()
	if err != nil || len(all) != 0 {
		t.Errorf("dry run must not write keys, got %d, %v", len(all), err)
	}
	entities, err := dst.EntityStorage().List("", nil)
	if err != nil || len(entities) != 0 {
		t.Errorf("dry run must not write entities, got %d, %v", len(entities), err)
	}
}

func TestMigrateKeepsExistingActiveKey(t *testing.T) {
	src := newLegacyDB(t)

	dst := newDestination(t)
	current := &model.SigningKey{KID: "current", Algorithm: "RS256", PrivateKey: "p", PublicKey: "p"}
	if _, err := dst.SigningKeyStorage().InsertActiveIfAbsent(current); err != nil {
		t.Fatalf("failed to insert key: %v", err)
	}
	runMigration(t, src, dst, false, false)
	active, _ := dst.SigningKeyStorage().Active()
	if active == nil || active.KID != "current" {
		t.Errorf("expected the existing key to stay active, got %+v", active)
	}

	promoted := newDestination(t)
	if _, err := promoted.SigningKeyStorage().InsertActiveIfAbsent(
		&model.SigningKey{KID: "current", Algorithm: "RS256", PrivateKey: "p", PublicKey: "p"},
	); err != nil {
		t.Fatalf("failed to insert key: %v", err)
	}
	runMigration(t, src, promoted, false, true)
	active, _ = promoted.SigningKeyStorage().Active()
	if active == nil || active.KID != "legacy-new" {
		t.Errorf("expected the legacy key to be promoted, got %+v", active)
	}
}

func TestOpenLegacyDBMissing(t *testing.T) {
	if _, err := openLegacyDB(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected an error for a missing legacy database")
	}
}
