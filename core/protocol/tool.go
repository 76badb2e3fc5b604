package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Tool describes an operation the reasoning step may select.
// Parameters is a JSON Schema object describing the arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Fingerprint returns a stable digest of a tool catalog. Two catalogs with
// the same tools in the same order always produce the same value, since
// encoding/json writes map keys sorted.
func Fingerprint(catalog []Tool) string {
	data, err := json.Marshal(catalog)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
