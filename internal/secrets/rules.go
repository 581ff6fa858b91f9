package secrets

// DefaultRules returns rules for the credentials this application handles:
// LLM and embedding provider keys, bearer headers and key assignments.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "openrouter-api-key",
			Description: "OpenRouter API Key",
			Pattern:     `sk-or-(?:v1-)?[A-Za-z0-9]{32,}`,
		},
		{
			ID:          "anthropic-api-key",
			Description: "Anthropic API Key",
			Pattern:     `sk-ant-[A-Za-z0-9_\-]{32,}`,
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI API Key",
			Pattern:     `sk-(?:proj-)?[A-Za-z0-9_\-]{32,}`,
		},
		{
			ID:          "huggingface-token",
			Description: "Hugging Face Access Token",
			Pattern:     `hf_[A-Za-z0-9]{30,}`,
		},
		{
			ID:          "google-api-key",
			Description: "Google API Key",
			Pattern:     `AIza[A-Za-z0-9_\-]{35}`,
		},
		{
			ID:          "bearer-token",
			Description: "Bearer Token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9_\-\.=]{16,}`,
			Keywords:    []string{"bearer"},
		},
		{
			ID:          "api-key-assignment",
			Description: "API key assigned in configuration or environment",
			Pattern:     `(?i)(?:api[_-]?key|apikey|access[_-]?token)["']?\s*[:=]\s*['"]?[A-Za-z0-9_\-\.]{16,}['"]?`,
			Keywords:    []string{"key", "token"},
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`,
		},
		{
			ID:          "private-key",
			Description: "Private Key",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
		},
	}
}
