package schema

// Provider identifies which LLM backend a configuration carries credentials
// for. Stored configurations never talk to the provider; this only tells a
// future runtime which credentials block is populated.
type Provider string

const (
	ProviderAnthropicBedrock Provider = "anthropic_bedrock"
	ProviderOpenAI           Provider = "openai"
)

// Closed enum domains. Any value outside these sets fails validation.
var (
	verbosityValues = []string{"concise", "moderate", "detailed"}

	toneValues = []string{"formal", "professional but approachable", "casual", "technical"}

	logLevelValues = []string{"debug", "info", "warning", "error"}

	defaultFormatValues = []string{"markdown", "plain_text", "json"}

	panelPositionValues = []string{"right_panel", "left_panel", "bottom_panel", "modal", "floating"}

	panelStateValues = []string{"collapsed", "expanded"}

	piiActionValues = []string{"redact", "block", "warn"}

	relationshipValues = []string{"belongs_to", "has_many", "has_one", "many_to_many"}
)
