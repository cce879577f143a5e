package verify

// RegistryResponse is the body of POST /api/verify on the registry.
type RegistryResponse struct {
	Success               bool     `json:"success"`
	Verified              bool     `json:"verified"`
	ConfidenceScore       *float64 `json:"confidence_score,omitempty"`
	MatchedCertificate    *Student `json:"matched_certificate,omitempty"`
	Message               string   `json:"message,omitempty"`
	Error                 string   `json:"error,omitempty"`
	SearchedFor           *Query   `json:"searched_for,omitempty"`
	VerificationTimestamp string   `json:"verification_timestamp,omitempty"`
}

// registryResponseSchema checks a registry reply before it is interpreted.
func registryResponseSchema() map[string]any {
	matched := studentSchema()
	// registries may add their own record attributes
	delete(matched, "additionalProperties")
	return map[string]any{
		"type":     "object",
		"required": []string{"success"},
		"properties": map[string]any{
			"success":             map[string]any{"type": "boolean"},
			"verified":            map[string]any{"type": "boolean"},
			"confidence_score":    map[string]any{"type": []string{"number", "null"}, "minimum": 0, "maximum": 1},
			"matched_certificate": map[string]any{"anyOf": []any{map[string]any{"type": "null"}, matched}},
			"message":             map[string]any{"type": "string"},
			"error":               map[string]any{"type": "string"},
		},
	}
}
