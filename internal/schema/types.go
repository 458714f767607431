package schema

// ChatbotConfig is the root of a validated configuration document. Build one
// with Validate; hand-constructed values bypass the schema and should only
// appear in tests.
type ChatbotConfig struct {
	Version              string               `json:"version" yaml:"version"`
	Metadata             Metadata             `json:"metadata" yaml:"metadata"`
	LLMCredentials       LLMCredentials       `json:"llm_credentials" yaml:"llm_credentials"`
	LLMParameters        LLMParameters        `json:"llm_parameters" yaml:"llm_parameters"`
	DataContext          DataContext          `json:"data_context" yaml:"data_context"`
	SystemPrompt         SystemPrompt         `json:"system_prompt" yaml:"system_prompt"`
	Guardrails           Guardrails           `json:"guardrails" yaml:"guardrails"`
	StructuredOutput     StructuredOutput     `json:"structured_output" yaml:"structured_output"`
	ConversationMemory   ConversationMemory   `json:"conversation_memory" yaml:"conversation_memory"`
	Elicitation          Elicitation          `json:"elicitation" yaml:"elicitation"`
	MCPTools             MCPTools             `json:"mcp_tools" yaml:"mcp_tools"`
	MCPResources         MCPResources         `json:"mcp_resources" yaml:"mcp_resources"`
	DashboardIntegration DashboardIntegration `json:"dashboard_integration" yaml:"dashboard_integration"`
	Logging              Logging              `json:"logging" yaml:"logging"`
}

// Provider reports which credentials block is populated. Validation
// guarantees exactly one is.
func (c *ChatbotConfig) Provider() Provider {
	if c.LLMCredentials.AnthropicBedrock != nil {
		return ProviderAnthropicBedrock
	}
	return ProviderOpenAI
}

// Metadata carries versioning and audit fields. Name is globally unique
// across all stored documents.
type Metadata struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Created     Timestamp `json:"created" yaml:"created"`
	Modified    Timestamp `json:"modified" yaml:"modified"`
	Author      string    `json:"author" yaml:"author"`
}

// LLMCredentials holds exactly one provider's credentials.
type LLMCredentials struct {
	AnthropicBedrock *BedrockCredentials `json:"anthropic_bedrock,omitempty" yaml:"anthropic_bedrock,omitempty"`
	OpenAI           *OpenAICredentials  `json:"openai,omitempty" yaml:"openai,omitempty"`
}

type BedrockCredentials struct {
	AWSAccessKeyID     string `json:"aws_access_key_id" yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `json:"aws_secret_access_key" yaml:"aws_secret_access_key"`
	AWSRegion          string `json:"aws_region" yaml:"aws_region"`
}

type OpenAICredentials struct {
	APIKey         string  `json:"api_key" yaml:"api_key"`
	OrganizationID *string `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
}

type RetryPolicy struct {
	MaxRetries        int     `json:"max_retries" yaml:"max_retries"`
	InitialDelayMS    int     `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	MaxDelayMS        int     `json:"max_delay_ms" yaml:"max_delay_ms"`
}

type LLMParameters struct {
	Model         string      `json:"model" yaml:"model"`
	Temperature   float64     `json:"temperature" yaml:"temperature"`
	MaxTokens     int         `json:"max_tokens" yaml:"max_tokens"`
	TopP          float64     `json:"top_p" yaml:"top_p"`
	StopSequences []string    `json:"stop_sequences" yaml:"stop_sequences"`
	RetryPolicy   RetryPolicy `json:"retry_policy" yaml:"retry_policy"`
	TimeoutMS     int         `json:"timeout_ms" yaml:"timeout_ms"`
}

// Datasource references one Portal datasource the chatbot may query.
type Datasource struct {
	Name               string `json:"name" yaml:"name"`
	PortalDatasourceID string `json:"portal_datasource_id" yaml:"portal_datasource_id"`
	Description        string `json:"description" yaml:"description"`
	PrimaryEntity      string `json:"primary_entity" yaml:"primary_entity"`
	RefreshFrequency   string `json:"refresh_frequency" yaml:"refresh_frequency"`
}

// FieldMapping translates a technical field name into business terminology.
type FieldMapping struct {
	BusinessName string   `json:"business_name" yaml:"business_name"`
	Description  string   `json:"description" yaml:"description"`
	Format       string   `json:"format" yaml:"format"`
	ValidValues  []string `json:"valid_values,omitempty" yaml:"valid_values,omitempty"`
}

type EntityRelationship struct {
	From         string `json:"from" yaml:"from"`
	To           string `json:"to" yaml:"to"`
	Relationship string `json:"relationship" yaml:"relationship"`
	Description  string `json:"description" yaml:"description"`
}

type CalculatedMetric struct {
	Name        string `json:"name" yaml:"name"`
	Formula     string `json:"formula" yaml:"formula"`
	Description string `json:"description" yaml:"description"`
}

type FiscalQuarters struct {
	Q1 string `json:"Q1" yaml:"Q1"`
	Q2 string `json:"Q2" yaml:"Q2"`
	Q3 string `json:"Q3" yaml:"Q3"`
	Q4 string `json:"Q4" yaml:"Q4"`
}

type TimeConventions struct {
	FiscalYearStart         string         `json:"fiscal_year_start" yaml:"fiscal_year_start"`
	FiscalQuarters          FiscalQuarters `json:"fiscal_quarters" yaml:"fiscal_quarters"`
	DefaultTimezone         string         `json:"default_timezone" yaml:"default_timezone"`
	WhenUserSaysThisQuarter string         `json:"when_user_says_this_quarter" yaml:"when_user_says_this_quarter"`
	WhenUserSaysThisYear    string         `json:"when_user_says_this_year" yaml:"when_user_says_this_year"`
}

// SegmentationRules is an open mapping: known keys (deal_size, account_tier)
// are shape-checked, arbitrary extra keys pass through untouched.
type SegmentationRules map[string]any

type SampleQuestion struct {
	Question       string `json:"question" yaml:"question"`
	Interpretation string `json:"interpretation" yaml:"interpretation"`
	Datasource     string `json:"datasource" yaml:"datasource"`
}

type SemanticLayer struct {
	BusinessTerms       map[string]string       `json:"business_terms" yaml:"business_terms"`
	FieldMappings       map[string]FieldMapping `json:"field_mappings" yaml:"field_mappings"`
	EntityRelationships []EntityRelationship    `json:"entity_relationships" yaml:"entity_relationships"`
	CalculatedMetrics   []CalculatedMetric      `json:"calculated_metrics" yaml:"calculated_metrics"`
	TimeConventions     *TimeConventions        `json:"time_conventions,omitempty" yaml:"time_conventions,omitempty"`
	SegmentationRules   SegmentationRules       `json:"segmentation_rules,omitempty" yaml:"segmentation_rules,omitempty"`
}

type DataContext struct {
	Datasources     []Datasource     `json:"datasources" yaml:"datasources"`
	SemanticLayer   SemanticLayer    `json:"semantic_layer" yaml:"semantic_layer"`
	SampleQuestions []SampleQuestion `json:"sample_questions" yaml:"sample_questions"`
}

type Persona struct {
	Name              string   `json:"name" yaml:"name"`
	Tone              string   `json:"tone" yaml:"tone"`
	Verbosity         string   `json:"verbosity" yaml:"verbosity"`
	PersonalityTraits []string `json:"personality_traits" yaml:"personality_traits"`
}

type ContextInjection struct {
	IncludeCurrentDate      bool `json:"include_current_date" yaml:"include_current_date"`
	IncludeFiscalPeriod     bool `json:"include_fiscal_period" yaml:"include_fiscal_period"`
	IncludeUserRole         bool `json:"include_user_role" yaml:"include_user_role"`
	IncludeDashboardContext bool `json:"include_dashboard_context" yaml:"include_dashboard_context"`
}

type FewShotExample struct {
	User      string `json:"user" yaml:"user"`
	Assistant string `json:"assistant" yaml:"assistant"`
}

type SystemPrompt struct {
	BasePrompt         string           `json:"base_prompt" yaml:"base_prompt"`
	Persona            Persona          `json:"persona" yaml:"persona"`
	ResponseGuidelines []string         `json:"response_guidelines" yaml:"response_guidelines"`
	ContextInjection   ContextInjection `json:"context_injection" yaml:"context_injection"`
	FewShotExamples    []FewShotExample `json:"few_shot_examples" yaml:"few_shot_examples"`
}

type TopicRestrictions struct {
	BlockedTopics   []string `json:"blocked_topics" yaml:"blocked_topics"`
	RedirectMessage string   `json:"redirect_message" yaml:"redirect_message"`
}

type AggregationRequirement struct {
	IndividualCompensation *int   `json:"individual_compensation,omitempty" yaml:"individual_compensation,omitempty"`
	Description            string `json:"description" yaml:"description"`
}

type DataRestrictions struct {
	NeverExposeFields       []string                `json:"never_expose_fields" yaml:"never_expose_fields"`
	RequireAggregationAbove *AggregationRequirement `json:"require_aggregation_above,omitempty" yaml:"require_aggregation_above,omitempty"`
}

type BehavioralRestrictions struct {
	NeverActions  []string `json:"never_actions" yaml:"never_actions"`
	AlwaysActions []string `json:"always_actions" yaml:"always_actions"`
}

type InputValidation struct {
	MaxQuestionLength int      `json:"max_question_length" yaml:"max_question_length"`
	RejectPatterns    []string `json:"reject_patterns" yaml:"reject_patterns"`
	RejectionMessage  string   `json:"rejection_message" yaml:"rejection_message"`
}

type PIIDetection struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Action  string `json:"action" yaml:"action"`
}

type OutputValidation struct {
	MaxResponseLength      int          `json:"max_response_length" yaml:"max_response_length"`
	RequireDataAttribution bool         `json:"require_data_attribution" yaml:"require_data_attribution"`
	PIIDetection           PIIDetection `json:"pii_detection" yaml:"pii_detection"`
}

type RateLimits struct {
	MaxQuestionsPerMinute  int    `json:"max_questions_per_minute" yaml:"max_questions_per_minute"`
	MaxQuestionsPerSession int    `json:"max_questions_per_session" yaml:"max_questions_per_session"`
	CooldownMessage        string `json:"cooldown_message" yaml:"cooldown_message"`
}

type Guardrails struct {
	TopicRestrictions      TopicRestrictions      `json:"topic_restrictions" yaml:"topic_restrictions"`
	DataRestrictions       DataRestrictions       `json:"data_restrictions" yaml:"data_restrictions"`
	BehavioralRestrictions BehavioralRestrictions `json:"behavioral_restrictions" yaml:"behavioral_restrictions"`
	InputValidation        InputValidation        `json:"input_validation" yaml:"input_validation"`
	OutputValidation       OutputValidation       `json:"output_validation" yaml:"output_validation"`
	RateLimits             RateLimits             `json:"rate_limits" yaml:"rate_limits"`
}

type CurrencyFormatting struct {
	Symbol             string `json:"symbol" yaml:"symbol"`
	ThousandsSeparator string `json:"thousands_separator" yaml:"thousands_separator"`
	AbbreviateAbove    int    `json:"abbreviate_above" yaml:"abbreviate_above"`
	AbbreviationStyle  string `json:"abbreviation_style" yaml:"abbreviation_style"`
}

type PercentageFormatting struct {
	DecimalPlaces int  `json:"decimal_places" yaml:"decimal_places"`
	IncludeSymbol bool `json:"include_symbol" yaml:"include_symbol"`
}

type DateFormatting struct {
	Format             string `json:"format" yaml:"format"`
	RelativeWithinDays int    `json:"relative_within_days" yaml:"relative_within_days"`
}

type TableFormatting struct {
	MaxRowsBeforeSummary int    `json:"max_rows_before_summary" yaml:"max_rows_before_summary"`
	SortByDefault        string `json:"sort_by_default" yaml:"sort_by_default"`
}

type FormattingRules struct {
	Currency   CurrencyFormatting   `json:"currency" yaml:"currency"`
	Percentage PercentageFormatting `json:"percentage" yaml:"percentage"`
	Dates      DateFormatting       `json:"dates" yaml:"dates"`
	Tables     TableFormatting      `json:"tables" yaml:"tables"`
}

type StructuredOutput struct {
	DefaultFormat   string                    `json:"default_format" yaml:"default_format"`
	ResponseSchemas map[string]map[string]any `json:"response_schemas" yaml:"response_schemas"`
	FormattingRules FormattingRules           `json:"formatting_rules" yaml:"formatting_rules"`
}

type ConversationMemory struct {
	Enabled               bool     `json:"enabled" yaml:"enabled"`
	MaxTurns              int      `json:"max_turns" yaml:"max_turns"`
	SummarizeAfterTurns   int      `json:"summarize_after_turns" yaml:"summarize_after_turns"`
	SessionTimeoutMinutes int      `json:"session_timeout_minutes" yaml:"session_timeout_minutes"`
	ContextToPreserve     []string `json:"context_to_preserve" yaml:"context_to_preserve"`
	ContextToForget       []string `json:"context_to_forget" yaml:"context_to_forget"`
}

type ElicitationPattern struct {
	Trigger          string  `json:"trigger" yaml:"trigger"`
	Condition        string  `json:"condition" yaml:"condition"`
	Prompt           string  `json:"prompt" yaml:"prompt"`
	DefaultIfSkipped *string `json:"default_if_skipped,omitempty" yaml:"default_if_skipped,omitempty"`
}

type Elicitation struct {
	Enabled  bool                 `json:"enabled" yaml:"enabled"`
	Patterns []ElicitationPattern `json:"patterns" yaml:"patterns"`
}

// MCPTool describes a tool a runtime may expose over MCP. Parameters is an
// open mapping (parameter name to arbitrary descriptor).
type MCPTool struct {
	Name             string         `json:"name" yaml:"name"`
	Description      string         `json:"description" yaml:"description"`
	Enabled          bool           `json:"enabled" yaml:"enabled"`
	Parameters       map[string]any `json:"parameters" yaml:"parameters"`
	RequiresApproval bool           `json:"requires_approval" yaml:"requires_approval"`
}

type RunnerMCP struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    *string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Description string  `json:"description" yaml:"description"`
}

type MCPTools struct {
	Enabled        bool      `json:"enabled" yaml:"enabled"`
	AvailableTools []MCPTool `json:"available_tools" yaml:"available_tools"`
	RunnerMCP      RunnerMCP `json:"runner_mcp" yaml:"runner_mcp"`
}

type MCPResource struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	URI         string `json:"uri" yaml:"uri"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

type MCPResources struct {
	Enabled            bool          `json:"enabled" yaml:"enabled"`
	AvailableResources []MCPResource `json:"available_resources" yaml:"available_resources"`
}

type VisualizationAwareness struct {
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	CanReferenceCharts bool     `json:"can_reference_charts" yaml:"can_reference_charts"`
	ContextIncludes    []string `json:"context_includes" yaml:"context_includes"`
}

type DashboardIntegration struct {
	Position               string                 `json:"position" yaml:"position"`
	InitialState           string                 `json:"initial_state" yaml:"initial_state"`
	WidthPX                int                    `json:"width_px" yaml:"width_px"`
	WelcomeMessage         string                 `json:"welcome_message" yaml:"welcome_message"`
	SuggestedQuestions     []string               `json:"suggested_questions" yaml:"suggested_questions"`
	VisualizationAwareness VisualizationAwareness `json:"visualization_awareness" yaml:"visualization_awareness"`
}

type Logging struct {
	LogConversations bool     `json:"log_conversations" yaml:"log_conversations"`
	LogLevel         string   `json:"log_level" yaml:"log_level"`
	IncludeInLogs    []string `json:"include_in_logs" yaml:"include_in_logs"`
	ExcludeFromLogs  []string `json:"exclude_from_logs" yaml:"exclude_from_logs"`
	RetentionDays    int      `json:"retention_days" yaml:"retention_days"`
}
