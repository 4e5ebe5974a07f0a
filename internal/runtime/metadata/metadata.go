// Package metadata describes the identifying information carried by a model:
// its name, producer, descriptions, domain, version and a free-form custom
// key/value map.
package metadata

import "sort"

// Model holds model metadata, including name & producer information.
type Model struct {
	Name             string            `json:"name"`
	Producer         string            `json:"producer,omitempty"`
	Description      string            `json:"description,omitempty"`
	GraphDescription string            `json:"graphDescription,omitempty"`
	Domain           string            `json:"domain,omitempty"`
	Version          int64             `json:"version,omitempty"`
	Custom           map[string]string `json:"custom,omitempty"`
}

// CustomValue fetches the value of a custom metadata key. The second return
// value is false when the key is not present.
func (m *Model) CustomValue(key string) (string, bool) {
	if m.Custom == nil {
		return "", false
	}
	value, ok := m.Custom[key]
	return value, ok
}

// CustomKeys returns all custom metadata keys in sorted order.
func (m *Model) CustomKeys() []string {
	if len(m.Custom) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.Custom))
	for key := range m.Custom {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
