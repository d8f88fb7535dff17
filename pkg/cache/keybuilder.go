package cache

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// KeyBuilder derives the cache key for a request. The key is the request fields
// sorted by name, rendered as name:value and joined with "_", so two requests
// with the same fields map to the same key regardless of insertion order.
type KeyBuilder struct {
	IncludeCredential bool // Keep finx_api_key in the key
}

// NewKeyBuilder creates a KeyBuilder. The credential field is left out of keys
// unless includeCredential is set.
func NewKeyBuilder(includeCredential bool) *KeyBuilder {
	return &KeyBuilder{IncludeCredential: includeCredential}
}

// Build creates the cache key for a request. Nil values are skipped.
func (kb *KeyBuilder) Build(req types.Params) (string, error) {
	if req == nil {
		return "", errors.New("request cannot be nil")
	}
	if req.String(types.FieldAPIMethod) == "" {
		if _, ok := req[types.FieldAPIMethod].(types.Method); !ok {
			return "", types.ErrMissingMethod
		}
	}

	names := make([]string, 0, len(req))
	for name, v := range req {
		if v == nil || name == types.FieldCacheKey {
			continue
		}
		if name == types.FieldAPIKey && !kb.IncludeCredential {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ":" + formatValue(req[name])
	}

	return strings.Join(parts, "_"), nil
}

// BuildBatch creates cache keys for multiple requests.
func (kb *KeyBuilder) BuildBatch(reqs []types.Params) ([]string, error) {
	if len(reqs) == 0 {
		return nil, errors.New("requests slice cannot be empty")
	}

	keys := make([]string, len(reqs))
	for i, req := range reqs {
		key, err := kb.Build(req)
		if err != nil {
			return nil, fmt.Errorf("failed to build key for request %d: %w", i, err)
		}
		keys[i] = key
	}

	return keys, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case types.Method:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
