package state

import (
	"encoding/json"
	"fmt"
	"strings"
)

// legacyVersion is the pre-2.0 record format. Version 1.0 records named
// the fingerprint field attributes_hash, stored bare hex digests and
// carried no dependency edges.
const legacyVersion = "1.0"

type legacyResourceV1 struct {
	Name           string            `json:"name"`
	ResourceType   string            `json:"resource_type"`
	AttributesHash string            `json:"attributes_hash"`
	Identifiers    map[string]string `json:"identifiers,omitempty"`
}

type legacyRecordV1 struct {
	SchemaVersion string             `json:"schema_version"`
	Resources     []legacyResourceV1 `json:"resources"`
}

// decodeRecord parses a persisted record, transparently upgrading 1.0
// records to the current schema. The upgrade is applied in memory only;
// the stored bytes change on the next commit.
func decodeRecord(data []byte) (*Record, error) {
	var header struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("corrupt record: %w", err)
	}

	switch header.SchemaVersion {
	case SchemaVersion:
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("corrupt record: %w", err)
		}
		return &rec, nil
	case legacyVersion:
		var legacy legacyRecordV1
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("corrupt record: %w", err)
		}
		return migrateV1(&legacy), nil
	default:
		return nil, fmt.Errorf("unsupported schema version %q", header.SchemaVersion)
	}
}

// migrateV1 rewrites a 1.0 record to the current schema:
// - schema_version becomes "2.0" and the backend marker is set
// - attributes_hash becomes fingerprint, gaining the digest prefix
// - dependency edges stay empty; deletes of migrated resources fall
//   back to kind-rank ordering until the next deploy records edges
func migrateV1(legacy *legacyRecordV1) *Record {
	rec := NewRecord()
	for _, res := range legacy.Resources {
		fp := res.AttributesHash
		if fp != "" && !strings.Contains(fp, ":") {
			fp = "sha256:" + fp
		}
		rec.Put(Resource{
			Name:         res.Name,
			ResourceType: res.ResourceType,
			Fingerprint:  fp,
			Identifiers:  res.Identifiers,
		})
	}
	return rec
}
