// Package state persists the deployed record for each stage: the
// mapping from resource id to provider-assigned identifiers, resource
// type and last-known attribute fingerprint.
package state

import (
	"fmt"
	"sort"
)

// SchemaVersion is the wire version of the persisted record.
const SchemaVersion = "2.0"

// Resource is one deployed resource in the record.
type Resource struct {
	Name         string            `json:"name"`
	ResourceType string            `json:"resource_type"`
	Fingerprint  string            `json:"fingerprint"`
	DependsOn    []string          `json:"depends_on,omitempty"`
	Identifiers  map[string]string `json:"identifiers,omitempty"`
}

// Record is the persisted deployment record for one stage. Stages are
// fully independent: one record, one lifecycle, no cross-stage
// references.
type Record struct {
	SchemaVersion string     `json:"schema_version"`
	Backend       string     `json:"backend"`
	Resources     []Resource `json:"resources"`
}

// NewRecord returns an empty record for a previously unseen stage.
func NewRecord() *Record {
	return &Record{SchemaVersion: SchemaVersion, Backend: "api"}
}

// Get returns the resource with the given name, or nil.
func (r *Record) Get(name string) *Resource {
	for i := range r.Resources {
		if r.Resources[i].Name == name {
			return &r.Resources[i]
		}
	}
	return nil
}

// Put inserts or replaces a resource by name.
func (r *Record) Put(res Resource) {
	for i := range r.Resources {
		if r.Resources[i].Name == res.Name {
			r.Resources[i] = res
			return
		}
	}
	r.Resources = append(r.Resources, res)
}

// Remove deletes a resource by name.
func (r *Record) Remove(name string) {
	for i := range r.Resources {
		if r.Resources[i].Name == name {
			r.Resources = append(r.Resources[:i], r.Resources[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy. The executor mutates a clone and commits
// it incrementally, leaving the loaded record untouched.
func (r *Record) Clone() *Record {
	out := &Record{SchemaVersion: r.SchemaVersion, Backend: r.Backend}
	for _, res := range r.Resources {
		c := res
		c.DependsOn = append([]string(nil), res.DependsOn...)
		c.Identifiers = make(map[string]string, len(res.Identifiers))
		for k, v := range res.Identifiers {
			c.Identifiers[k] = v
		}
		out.Resources = append(out.Resources, c)
	}
	return out
}

// sortResources orders resources by name for deterministic output.
func sortResources(resources []Resource) {
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})
}

// Store is the interface for per-stage record persistence. Commit must
// be atomic: a subsequent Load observes either the previous record or
// the new one, never a partial write.
type Store interface {
	// Load reads the record for a stage, returning an empty record if
	// the stage has never been deployed.
	Load(stage string) (*Record, error)

	// Commit atomically replaces the record for a stage.
	Commit(stage string, record *Record) error
}

// StoreError reports an unreadable, corrupt or unwritable record. It is
// fatal for the affected stage; other stages are unaffected.
type StoreError struct {
	Stage string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("state store: %s stage %q: %v", e.Op, e.Stage, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
