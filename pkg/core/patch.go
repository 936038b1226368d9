package core

// DefinitionPatch is a partial definition document applied by update.
// Present keys replace the stored value; a key set to null removes an
// optional key. http and columnDefs cannot be removed.
type DefinitionPatch map[string]any

// ParsePatch decodes and validates a JSON partial document.
func ParsePatch(data []byte) (DefinitionPatch, error) {
	var m map[string]any
	if err := decodeJSON(data, &m); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Message: "malformed JSON: " + err.Error()}}}
	}
	patch := DefinitionPatch(m)
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return patch, nil
}

// Validate checks every key present in the patch.
func (p DefinitionPatch) Validate() error {
	if errs := validatePatch(p); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Apply returns a new definition with the patch merged in. The receiver
// definition is not modified. The merged document is validated as a whole.
func (p DefinitionPatch) Apply(def *SerializedTableDefinition) (*SerializedTableDefinition, error) {
	doc := def.ToMap()
	for k, v := range p {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	return DefinitionFromMap(doc)
}
