package store

// String returns the string stored under key, or "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// StringPtr returns a pointer to the string stored under key, or nil when the
// field is absent.
func (d Document) StringPtr(key string) *string {
	s, ok := d[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func (d Document) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	}
	return false
}

func (d Document) Int64(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// StringLists decodes a map of string lists, such as message reactions.
func (d Document) StringLists(key string) map[string][]string {
	out := map[string][]string{}
	m, ok := Normalize(d[key]).(map[string]any)
	if !ok {
		return out
	}
	for k, v := range m {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		for _, e := range list {
			if s, ok := e.(string); ok {
				out[k] = append(out[k], s)
			}
		}
	}
	return out
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	return NormalizeDocument(d)
}
