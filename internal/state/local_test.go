package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func sampleRecord() *Record {
	rec := NewRecord()
	rec.Put(Resource{
		Name:         "iam_role/index",
		ResourceType: "iam_role",
		Fingerprint:  "sha256:aaa",
		Identifiers:  map[string]string{"role_arn": "arn:aws:iam::1:role/dev-index"},
	})
	rec.Put(Resource{
		Name:         "lambda_function/index",
		ResourceType: "lambda_function",
		Fingerprint:  "sha256:bbb",
		DependsOn:    []string{"iam_role/index"},
		Identifiers:  map[string]string{"function_arn": "arn:aws:lambda:us-east-1:1:function:dev-index"},
	})
	return rec
}

func TestLocalStoreLoadMissingStage(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	rec, err := store.Load("dev")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rec.Resources) != 0 {
		t.Errorf("fresh stage has %d resources, want 0", len(rec.Resources))
	}
	if rec.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", rec.SchemaVersion, SchemaVersion)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	if err := store.Commit("dev", sampleRecord()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	rec, err := store.Load("dev")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rec.Resources) != 2 {
		t.Fatalf("loaded %d resources, want 2", len(rec.Resources))
	}
	fn := rec.Get("lambda_function/index")
	if fn == nil {
		t.Fatal("function missing after round trip")
	}
	if fn.Identifiers["function_arn"] == "" {
		t.Error("identifiers lost")
	}
	if len(fn.DependsOn) != 1 || fn.DependsOn[0] != "iam_role/index" {
		t.Errorf("DependsOn = %v", fn.DependsOn)
	}
}

func TestLocalStoreCommitIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	if err := store.Commit("dev", sampleRecord()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	first, err := os.ReadFile(filepath.Join(dir, "dev.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Commit("dev", sampleRecord()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir, "dev.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("identical records serialized differently")
	}
}

func TestLocalStoreCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dev.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLocalStore(dir).Load("dev")
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("Load() error = %v, want StoreError", err)
	}
	if serr.Stage != "dev" || serr.Op != "load" {
		t.Errorf("StoreError = stage %q op %q", serr.Stage, serr.Op)
	}
}

func TestLocalStoreMigratesLegacyRecord(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{
  "schema_version": "1.0",
  "resources": [
    {
      "name": "lambda_function/index",
      "resource_type": "lambda_function",
      "attributes_hash": "deadbeef",
      "identifiers": {"function_arn": "arn:aws:lambda:us-east-1:1:function:dev-index"}
    }
  ]
}`)
	if err := os.WriteFile(filepath.Join(dir, "dev.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	rec, err := NewLocalStore(dir).Load("dev")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q after migration", rec.SchemaVersion, SchemaVersion)
	}
	fn := rec.Get("lambda_function/index")
	if fn == nil {
		t.Fatal("migrated resource missing")
	}
	if fn.Fingerprint != "sha256:deadbeef" {
		t.Errorf("Fingerprint = %q, want sha256:deadbeef", fn.Fingerprint)
	}
	if fn.Identifiers["function_arn"] == "" {
		t.Error("identifiers lost in migration")
	}
}

func TestLocalStoreSchemaVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"schema_version":"3.0","backend":"api","resources":[]}`)
	if err := os.WriteFile(filepath.Join(dir, "dev.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLocalStore(dir).Load("dev")
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("Load() error = %v, want StoreError", err)
	}
}

func TestLocalStoreStageFilesAreIndependent(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	if err := store.Commit("dev", sampleRecord()); err != nil {
		t.Fatalf("Commit(dev) error = %v", err)
	}

	prod, err := store.Load("prod")
	if err != nil {
		t.Fatalf("Load(prod) error = %v", err)
	}
	if len(prod.Resources) != 0 {
		t.Errorf("prod sees %d dev resources", len(prod.Resources))
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := sampleRecord()
	clone := rec.Clone()

	clone.Get("iam_role/index").Identifiers["role_arn"] = "changed"
	clone.Put(Resource{Name: "rest_api/app", ResourceType: "rest_api"})

	if rec.Get("iam_role/index").Identifiers["role_arn"] == "changed" {
		t.Error("clone shares identifier map with original")
	}
	if rec.Get("rest_api/app") != nil {
		t.Error("clone shares resource slice with original")
	}
}

func TestRecordPutReplaces(t *testing.T) {
	rec := sampleRecord()
	rec.Put(Resource{
		Name:         "iam_role/index",
		ResourceType: "iam_role",
		Fingerprint:  "sha256:ccc",
	})
	if len(rec.Resources) != 2 {
		t.Errorf("Put duplicated: %d resources, want 2", len(rec.Resources))
	}
	if got := rec.Get("iam_role/index").Fingerprint; got != "sha256:ccc" {
		t.Errorf("Fingerprint = %q, want sha256:ccc", got)
	}
}

func TestRecordRemove(t *testing.T) {
	rec := sampleRecord()
	rec.Remove("lambda_function/index")
	if rec.Get("lambda_function/index") != nil {
		t.Error("resource still present after Remove")
	}
	rec.Remove("lambda_function/index") // removing twice is a no-op
	if len(rec.Resources) != 1 {
		t.Errorf("record has %d resources, want 1", len(rec.Resources))
	}
}
