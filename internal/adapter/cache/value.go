package cache

import (
	"encoding/json"
	"fmt"
)

// encodeValue normalizes a cache value to its stored string form. Strings and
// byte slices pass through; everything else is JSON-marshaled. Both drivers
// go through here so a value written by one reads back identically from the
// other.
func encodeValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal value: %w", err)
		}
		return string(data), nil
	}
}
