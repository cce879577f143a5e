package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
)

// StripCodeFences removes a surrounding ```json ... ``` block if the model added one.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		if tag := strings.TrimSpace(s[:nl]); tag == "" || !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseFieldsResponse turns raw model content into validated Fields.
// It returns the cleaned JSON alongside so callers can persist or log it.
func ParseFieldsResponse(content string) (Fields, []byte, error) {
	cleaned := []byte(StripCodeFences(content))
	if len(cleaned) == 0 {
		return nil, nil, common.InvalidResponseError("model returned empty content", nil)
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(cleaned))
	if err := dec.Decode(&raw); err != nil {
		return nil, cleaned, common.InvalidResponseError("model reply is not a JSON object", err)
	}
	if raw == nil {
		return nil, cleaned, common.InvalidResponseError("model reply is null", nil)
	}
	if err := ValidateJSONAgainstSchema(BuildCertificateJSONSchema(), cleaned); err != nil {
		return nil, cleaned, common.InvalidResponseError("model reply has the wrong shape", err)
	}
	return ValidateFields(raw), cleaned, nil
}

// SingleLine flattens a model reply to one line, drops wrapping quotes and truncates.
func SingleLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, "\"'`")
	return TruncateSummary(strings.TrimSpace(s))
}
