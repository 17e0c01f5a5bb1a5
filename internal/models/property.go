package models

// PropertyData is the opaque structured payload of a final extraction result.
// The extractor chooses its fields; only "description" is ever read here.
type PropertyData map[string]interface{}

// Description returns the optional description field.
func (d PropertyData) Description() string {
	if d == nil {
		return ""
	}
	s, _ := d["description"].(string)
	return s
}

// Clone returns a shallow copy so callers cannot mutate retained results.
func (d PropertyData) Clone() PropertyData {
	if d == nil {
		return nil
	}
	out := make(PropertyData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
