package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

func ConnectorLockKey(kind, name string) int64 {
	kind = strings.ToLower(strings.TrimSpace(kind))
	name = strings.ToLower(strings.TrimSpace(name))

	h := fnv.New64a()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// ConfigHash returns a content hash of a configuration blob. Semantically equal JSON
// documents (key order, whitespace) hash the same.
func ConfigHash(raw []byte) string {
	return strconv.FormatUint(xxhash.Sum64(NormalizeJSON(raw)), 16)
}

// NormalizeJSON returns a canonical encoding of a JSON document. Empty input is
// treated as an empty object; invalid JSON is returned trimmed but unchanged.
func NormalizeJSON(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return []byte("{}")
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return b
	}
	out, err := json.Marshal(v)
	if err != nil {
		return b
	}
	return out
}

func MarshalJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("registry: marshal json: %w", err))
	}
	return b
}

// DecodeConfig decodes a configuration blob into T, rejecting unknown keys.
func DecodeConfig[T any](raw []byte) (T, error) {
	var out T
	raw = NormalizeJSON(raw)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode configuration: %w", err)
	}
	if dec.More() {
		return out, errors.New("decode configuration: trailing data")
	}
	return out, nil
}
