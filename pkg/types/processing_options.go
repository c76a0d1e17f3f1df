package types

// ProcessingOptions are the client supplied knobs for resume extraction.
type ProcessingOptions struct {
	ExtractTechnologies bool   `json:"extractTechnologies"`
	PerformOCR          bool   `json:"performOCR"`
	EnhanceWithAI       bool   `json:"enhanceWithAI"`
	Anonymize           bool   `json:"anonymize"`
	Language            string `json:"language" validate:"required,min=2,max=35"`
}

// DefaultProcessingOptions is applied when the upload carries no options.
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		ExtractTechnologies: true,
		PerformOCR:          true,
		EnhanceWithAI:       true,
		Anonymize:           false,
		Language:            "en",
	}
}

// ToMap renders the options with their wire keys for JSON columns.
func (o ProcessingOptions) ToMap() map[string]any {
	return map[string]any{
		"extractTechnologies": o.ExtractTechnologies,
		"performOCR":          o.PerformOCR,
		"enhanceWithAI":       o.EnhanceWithAI,
		"anonymize":           o.Anonymize,
		"language":            o.Language,
	}
}

// ProcessingOptionsFromMap reads options stored by ToMap. Missing keys keep
// their defaults.
func ProcessingOptionsFromMap(m map[string]any) ProcessingOptions {
	opts := DefaultProcessingOptions()
	if m == nil {
		return opts
	}
	readBool := func(key string, dst *bool) {
		if v, ok := m[key].(bool); ok {
			*dst = v
		}
	}
	readBool("extractTechnologies", &opts.ExtractTechnologies)
	readBool("performOCR", &opts.PerformOCR)
	readBool("enhanceWithAI", &opts.EnhanceWithAI)
	readBool("anonymize", &opts.Anonymize)
	if v, ok := m["language"].(string); ok && v != "" {
		opts.Language = v
	}
	return opts
}
