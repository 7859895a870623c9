package graph

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint computes the SHA-256 hash of the canonical JSON
// serialization of attributes (sorted keys, no whitespace). Two nodes
// with equal attributes always produce the same fingerprint, which is
// what the planner diffs against the deployed record. Attributes that
// cannot be serialized are an error, never an empty fingerprint.
func Fingerprint(attrs map[string]any) (string, error) {
	data, err := SerializeCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("fingerprint attributes: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", sum), nil
}

// SerializeCanonical produces canonical JSON for an attribute map:
// sorted keys at every nesting level, no whitespace.
func SerializeCanonical(attrs map[string]any) ([]byte, error) {
	return json.Marshal(canonicalValue(attrs))
}

// canonicalValue rewrites maps into an ordered representation that
// json.Marshal serializes with sorted keys.
func canonicalValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, keyValue{Key: k, Value: canonicalValue(t[k])})
		}
		return ordered
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalValue(e)
		}
		return out
	default:
		return v
	}
}

type keyValue struct {
	Key   string
	Value any
}

type orderedMap []keyValue

func (o orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, kv := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf, nil
}
