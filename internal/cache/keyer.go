package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/riviantrackr/aisearch/internal/domain"
)

const summaryKeyPrefix = "aisearch:summary:"

type keyMaterial struct {
	Namespace    int64  `json:"ns"`
	Model        string `json:"model"`
	MaxDocuments int    `json:"max_docs"`
	Query        string `json:"q"`
}

// BuildKey derives the cache key for a query under the given namespace and
// provider settings. The query is normalized first, so keys are stable
// across case and whitespace differences.
// Format: aisearch:summary:<first 16 bytes of SHA-256, hex>
func BuildKey(namespace int64, model string, maxDocuments int, query string) (string, error) {
	payload, err := json.Marshal(keyMaterial{
		Namespace:    namespace,
		Model:        model,
		MaxDocuments: maxDocuments,
		Query:        domain.NormalizeQuery(query),
	})
	if err != nil {
		return "", fmt.Errorf("cache: failed to encode key material: %w", err)
	}

	hash := sha256.Sum256(payload)
	return summaryKeyPrefix + hex.EncodeToString(hash[:16]), nil
}
