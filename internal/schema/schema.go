// Package schema defines the chatbot configuration document model and its
// validator. The schema is closed: unknown keys fail validation except in
// the two sections that explicitly allow extension fields (segmentation
// rules and MCP tool parameters).
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var (
	semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	kebabPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
	regionPattern = regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d+$`)
)

// openEntity accepts any mapping content. Used for response schema bodies.
var openEntity = &entity{open: true}

var bedrockEntity = &entity{
	fields: []field{
		{name: "aws_access_key_id", kind: kindString, required: true, checks: []check{strLen(16, 128)}},
		{name: "aws_secret_access_key", kind: kindString, required: true, checks: []check{strLen(1, 1 << 20)}},
		{name: "aws_region", kind: kindString, def: "us-east-1", checks: []check{pattern(regionPattern, "AWS region such as us-east-1")}},
	},
}

var openAIEntity = &entity{
	fields: []field{
		{name: "api_key", kind: kindString, required: true, checks: []check{strLen(1, 1 << 20)}},
		{name: "organization_id", kind: kindString},
	},
}

var credentialsEntity = &entity{
	fields: []field{
		{name: "anthropic_bedrock", kind: kindObject, entity: bedrockEntity},
		{name: "openai", kind: kindObject, entity: openAIEntity},
	},
	verify: []func(path string, m map[string]any) []FieldError{
		func(path string, m map[string]any) []FieldError {
			providers := 0
			if _, ok := m["anthropic_bedrock"]; ok {
				providers++
			}
			if _, ok := m["openai"]; ok {
				providers++
			}
			switch {
			case providers == 0:
				return []FieldError{{Path: path, Message: "at least one LLM provider must be configured (anthropic_bedrock or openai)"}}
			case providers > 1:
				return []FieldError{{Path: path, Message: "only one LLM provider can be configured at a time"}}
			}
			return nil
		},
	},
}

var metadataEntity = &entity{
	fields: []field{
		{name: "name", kind: kindString, required: true, checks: []check{strLen(1, 100), pattern(kebabPattern, "kebab-case identifier")}},
		{name: "description", kind: kindString, required: true, checks: []check{strLen(0, 500)}},
		{name: "created", kind: kindString, required: true, checks: []check{isTimestamp()}},
		{name: "modified", kind: kindString, required: true, checks: []check{isTimestamp()}},
		{name: "author", kind: kindString, required: true},
	},
}

var retryPolicyEntity = &entity{
	fields: []field{
		{name: "max_retries", kind: kindInt, def: 3, checks: []check{intRange(0, 10)}},
		{name: "initial_delay_ms", kind: kindInt, def: 1000, checks: []check{intRange(100, 30000)}},
		{name: "backoff_multiplier", kind: kindFloat, def: 2.0, checks: []check{floatRange(1.0, 5.0)}},
		{name: "max_delay_ms", kind: kindInt, def: 10000, checks: []check{intRange(1000, 60000)}},
	},
}

var llmParametersEntity = &entity{
	fields: []field{
		{name: "model", kind: kindString, required: true},
		{name: "temperature", kind: kindFloat, def: 0.3, checks: []check{floatRange(0.0, 1.0)}},
		{name: "max_tokens", kind: kindInt, def: 1024, checks: []check{intRange(100, 8192)}},
		{name: "top_p", kind: kindFloat, def: 0.9, checks: []check{floatRange(0.0, 1.0)}},
		{name: "stop_sequences", kind: kindStringList, def: []any{}},
		{name: "retry_policy", kind: kindObject, entity: retryPolicyEntity, def: map[string]any{}},
		{name: "timeout_ms", kind: kindInt, def: 30000, checks: []check{intRange(5000, 120000)}},
	},
}

var datasourceEntity = &entity{
	fields: []field{
		{name: "name", kind: kindString, required: true},
		{name: "portal_datasource_id", kind: kindString, required: true},
		{name: "description", kind: kindString, required: true},
		{name: "primary_entity", kind: kindString, required: true},
		{name: "refresh_frequency", kind: kindString, def: "daily"},
	},
}

var fieldMappingEntity = &entity{
	fields: []field{
		{name: "business_name", kind: kindString, required: true},
		{name: "description", kind: kindString, required: true},
		{name: "format", kind: kindString, required: true},
		{name: "valid_values", kind: kindStringList},
	},
}

var relationshipEntity = &entity{
	fields: []field{
		{name: "from", kind: kindString, required: true},
		{name: "to", kind: kindString, required: true},
		{name: "relationship", kind: kindString, required: true, checks: []check{oneOf(relationshipValues)}},
		{name: "description", kind: kindString, required: true},
	},
}

var metricEntity = &entity{
	fields: []field{
		{name: "name", kind: kindString, required: true},
		{name: "formula", kind: kindString, required: true},
		{name: "description", kind: kindString, required: true},
	},
}

var fiscalQuartersEntity = &entity{
	fields: []field{
		{name: "Q1", kind: kindString, required: true},
		{name: "Q2", kind: kindString, required: true},
		{name: "Q3", kind: kindString, required: true},
		{name: "Q4", kind: kindString, required: true},
	},
}

var timeConventionsEntity = &entity{
	fields: []field{
		{name: "fiscal_year_start", kind: kindString, required: true},
		{name: "fiscal_quarters", kind: kindObject, entity: fiscalQuartersEntity, required: true},
		{name: "default_timezone", kind: kindString, def: "UTC"},
		{name: "when_user_says_this_quarter", kind: kindString, def: "current fiscal quarter based on today's date"},
		{name: "when_user_says_this_year", kind: kindString, def: "current fiscal year based on today's date"},
	},
}

var sampleQuestionEntity = &entity{
	fields: []field{
		{name: "question", kind: kindString, required: true},
		{name: "interpretation", kind: kindString, required: true},
		{name: "datasource", kind: kindString, required: true},
	},
}

var semanticLayerEntity = &entity{
	fields: []field{
		{name: "business_terms", kind: kindStringMap, def: map[string]any{}},
		{name: "field_mappings", kind: kindObjectMap, entity: fieldMappingEntity, def: map[string]any{}},
		{name: "entity_relationships", kind: kindObjectList, entity: relationshipEntity, def: []any{}},
		{name: "calculated_metrics", kind: kindObjectList, entity: metricEntity, def: []any{}},
		{name: "time_conventions", kind: kindObject, entity: timeConventionsEntity},
		{name: "segmentation_rules", kind: kindCustom, custom: validateSegmentationRules},
	},
}

var dataContextEntity = &entity{
	fields: []field{
		{name: "datasources", kind: kindObjectList, entity: datasourceEntity, required: true, checks: []check{minItems(1)}},
		{name: "semantic_layer", kind: kindObject, entity: semanticLayerEntity, def: map[string]any{}},
		{name: "sample_questions", kind: kindObjectList, entity: sampleQuestionEntity, def: []any{}},
	},
}

var personaEntity = &entity{
	fields: []field{
		{name: "name", kind: kindString, def: "Assistant"},
		{name: "tone", kind: kindString, def: "professional but approachable", checks: []check{oneOf(toneValues)}},
		{name: "verbosity", kind: kindString, def: "concise", checks: []check{oneOf(verbosityValues)}},
		{name: "personality_traits", kind: kindStringList, def: []any{}},
	},
}

var contextInjectionEntity = &entity{
	fields: []field{
		{name: "include_current_date", kind: kindBool, def: true},
		{name: "include_fiscal_period", kind: kindBool, def: true},
		{name: "include_user_role", kind: kindBool, def: false},
		{name: "include_dashboard_context", kind: kindBool, def: true},
	},
}

var fewShotEntity = &entity{
	fields: []field{
		{name: "user", kind: kindString, required: true},
		{name: "assistant", kind: kindString, required: true},
	},
}

var systemPromptEntity = &entity{
	fields: []field{
		{name: "base_prompt", kind: kindString, required: true, checks: []check{strLen(50, 10000)}},
		{name: "persona", kind: kindObject, entity: personaEntity, def: map[string]any{}},
		{name: "response_guidelines", kind: kindStringList, def: []any{}},
		{name: "context_injection", kind: kindObject, entity: contextInjectionEntity, def: map[string]any{}},
		{name: "few_shot_examples", kind: kindObjectList, entity: fewShotEntity, def: []any{}, checks: []check{maxItems(10)}},
	},
}

var topicRestrictionsEntity = &entity{
	fields: []field{
		{name: "blocked_topics", kind: kindStringList, def: []any{}},
		{name: "redirect_message", kind: kindString, def: "I'm not able to discuss that topic. How else can I help?"},
	},
}

var aggregationEntity = &entity{
	fields: []field{
		{name: "individual_compensation", kind: kindInt, checks: []check{intMin(1)}},
		{name: "description", kind: kindString, def: ""},
	},
}

var dataRestrictionsEntity = &entity{
	fields: []field{
		{name: "never_expose_fields", kind: kindStringList, def: []any{}},
		{name: "require_aggregation_above", kind: kindObject, entity: aggregationEntity},
	},
}

var behavioralRestrictionsEntity = &entity{
	fields: []field{
		{name: "never_actions", kind: kindStringList, def: []any{}},
		{name: "always_actions", kind: kindStringList, def: []any{}},
	},
}

var inputValidationEntity = &entity{
	fields: []field{
		{name: "max_question_length", kind: kindInt, def: 2000, checks: []check{intRange(100, 10000)}},
		{name: "reject_patterns", kind: kindStringList, def: []any{}},
		{name: "rejection_message", kind: kindString, def: "I didn't understand that request. Could you rephrase?"},
	},
}

var piiDetectionEntity = &entity{
	fields: []field{
		{name: "enabled", kind: kindBool, def: true},
		{name: "action", kind: kindString, def: "redact", checks: []check{oneOf(piiActionValues)}},
	},
}

var outputValidationEntity = &entity{
	fields: []field{
		{name: "max_response_length", kind: kindInt, def: 4000, checks: []check{intRange(100, 20000)}},
		{name: "require_data_attribution", kind: kindBool, def: true},
		{name: "pii_detection", kind: kindObject, entity: piiDetectionEntity, def: map[string]any{}},
	},
}

var rateLimitsEntity = &entity{
	fields: []field{
		{name: "max_questions_per_minute", kind: kindInt, def: 10, checks: []check{intRange(1, 100)}},
		{name: "max_questions_per_session", kind: kindInt, def: 100, checks: []check{intRange(10, 1000)}},
		{name: "cooldown_message", kind: kindString, def: "Please wait a moment before continuing."},
	},
}

var guardrailsEntity = &entity{
	fields: []field{
		{name: "topic_restrictions", kind: kindObject, entity: topicRestrictionsEntity, def: map[string]any{}},
		{name: "data_restrictions", kind: kindObject, entity: dataRestrictionsEntity, def: map[string]any{}},
		{name: "behavioral_restrictions", kind: kindObject, entity: behavioralRestrictionsEntity, def: map[string]any{}},
		{name: "input_validation", kind: kindObject, entity: inputValidationEntity, def: map[string]any{}},
		{name: "output_validation", kind: kindObject, entity: outputValidationEntity, def: map[string]any{}},
		{name: "rate_limits", kind: kindObject, entity: rateLimitsEntity, def: map[string]any{}},
	},
}

var currencyEntity = &entity{
	fields: []field{
		{name: "symbol", kind: kindString, def: "$"},
		{name: "thousands_separator", kind: kindString, def: ","},
		{name: "abbreviate_above", kind: kindInt, def: 1000000},
		{name: "abbreviation_style", kind: kindString, def: "1.2M"},
	},
}

var percentageEntity = &entity{
	fields: []field{
		{name: "decimal_places", kind: kindInt, def: 1, checks: []check{intRange(0, 4)}},
		{name: "include_symbol", kind: kindBool, def: true},
	},
}

var dateFormattingEntity = &entity{
	fields: []field{
		{name: "format", kind: kindString, def: "MMM D, YYYY"},
		{name: "relative_within_days", kind: kindInt, def: 7, checks: []check{intMin(0)}},
	},
}

var tableFormattingEntity = &entity{
	fields: []field{
		{name: "max_rows_before_summary", kind: kindInt, def: 10, checks: []check{intRange(1, 100)}},
		{name: "sort_by_default", kind: kindString, def: "amount_desc"},
	},
}

var formattingRulesEntity = &entity{
	fields: []field{
		{name: "currency", kind: kindObject, entity: currencyEntity, def: map[string]any{}},
		{name: "percentage", kind: kindObject, entity: percentageEntity, def: map[string]any{}},
		{name: "dates", kind: kindObject, entity: dateFormattingEntity, def: map[string]any{}},
		{name: "tables", kind: kindObject, entity: tableFormattingEntity, def: map[string]any{}},
	},
}

var structuredOutputEntity = &entity{
	fields: []field{
		{name: "default_format", kind: kindString, def: "markdown", checks: []check{oneOf(defaultFormatValues)}},
		{name: "response_schemas", kind: kindObjectMap, entity: openEntity, def: map[string]any{}},
		{name: "formatting_rules", kind: kindObject, entity: formattingRulesEntity, def: map[string]any{}},
	},
}

var conversationMemoryEntity = &entity{
	fields: []field{
		{name: "enabled", kind: kindBool, def: true},
		{name: "max_turns", kind: kindInt, def: 10, checks: []check{intRange(1, 50)}},
		{name: "summarize_after_turns", kind: kindInt, def: 8, checks: []check{intRange(1, 50)}},
		{name: "session_timeout_minutes", kind: kindInt, def: 30, checks: []check{intRange(5, 1440)}},
		{name: "context_to_preserve", kind: kindStringList, def: []any{}},
		{name: "context_to_forget", kind: kindStringList, def: []any{}},
	},
	verify: []func(path string, m map[string]any) []FieldError{
		func(path string, m map[string]any) []FieldError {
			after, ok1 := asInt(m["summarize_after_turns"])
			max, ok2 := asInt(m["max_turns"])
			if ok1 && ok2 && after > max {
				return []FieldError{{
					Path:    joinPath(path, "summarize_after_turns"),
					Message: fmt.Sprintf("summarize_after_turns (%d) must be <= max_turns (%d)", after, max),
				}}
			}
			return nil
		},
	},
}

var elicitationPatternEntity = &entity{
	fields: []field{
		{name: "trigger", kind: kindString, required: true},
		{name: "condition", kind: kindString, required: true},
		{name: "prompt", kind: kindString, required: true},
		{name: "default_if_skipped", kind: kindString},
	},
}

var elicitationEntity = &entity{
	fields: []field{
		{name: "enabled", kind: kindBool, def: true},
		{name: "patterns", kind: kindObjectList, entity: elicitationPatternEntity, def: []any{}},
	},
}

var mcpToolEntity = &entity{
	fields: []field{
		{name: "name", kind: kindString, required: true},
		{name: "description", kind: kindString, required: true},
		{name: "enabled", kind: kindBool, def: false},
		// Tool parameters are the one MCP type that accepts arbitrary
		// extension keys.
		{name: "parameters", kind: kindAnyMap, def: map[string]any{}},
		{name: "requires_approval", kind: kindBool, def: false},
	},
}

var runnerMCPEntity = &entity{
	fields: []field{
		{name: "enabled", kind: kindBool, def: false},
		{name: "endpoint", kind: kindString},
		{name: "description", kind: kindString, def: ""},
	},
}

var mcpToolsEntity = &entity{
	fields: []field{
		{name: "enabled", kind: kindBool, def: false},
		{name: "available_tools", kind: kindObjectList, entity: mcpToolEntity, def: []any{}},
		{name: "runner_mcp", kind: kindObject, entity: runnerMCPEntity, def: map[string]any{}},
	},
}

var mcpResourceEntity = &entity{
	fields: []field{
		{name: "name", kind: kindString, required: true},
		{name: "description", kind: kindString, required: true},
		{name: "uri", kind: kindString, required: true},
		{name: "enabled", kind: kindBool, def: false},
	},
}

var mcpResourcesEntity = &entity{
	fields: []field{
		{name: "enabled", kind: kindBool, def: false},
		{name: "available_resources", kind: kindObjectList, entity: mcpResourceEntity, def: []any{}},
	},
}

var visualizationAwarenessEntity = &entity{
	fields: []field{
		{name: "enabled", kind: kindBool, def: true},
		{name: "can_reference_charts", kind: kindBool, def: true},
		{name: "context_includes", kind: kindStringList, def: []any{}},
	},
}

var dashboardIntegrationEntity = &entity{
	fields: []field{
		{name: "position", kind: kindString, def: "right_panel", checks: []check{oneOf(panelPositionValues)}},
		{name: "initial_state", kind: kindString, def: "collapsed", checks: []check{oneOf(panelStateValues)}},
		{name: "width_px", kind: kindInt, def: 400, checks: []check{intRange(200, 800)}},
		{name: "welcome_message", kind: kindString, def: "Hello! How can I help you understand this data?"},
		{name: "suggested_questions", kind: kindStringList, def: []any{}, checks: []check{maxItems(10)}},
		{name: "visualization_awareness", kind: kindObject, entity: visualizationAwarenessEntity, def: map[string]any{}},
	},
}

var loggingEntity = &entity{
	fields: []field{
		{name: "log_conversations", kind: kindBool, def: true},
		{name: "log_level", kind: kindString, def: "info", checks: []check{oneOf(logLevelValues)}},
		{name: "include_in_logs", kind: kindStringList, def: []string{"session_id", "user_id", "dashboard_id", "question", "latency_ms"}},
		{name: "exclude_from_logs", kind: kindStringList, def: []string{"full_response_text"}},
		{name: "retention_days", kind: kindInt, def: 90, checks: []check{intRange(1, 365)}},
	},
}

var configEntity = &entity{
	fields: []field{
		{name: "version", kind: kindString, def: "1.0.0", checks: []check{pattern(semverPattern, "semantic version such as 1.0.0")}},
		{name: "metadata", kind: kindObject, entity: metadataEntity, required: true},
		{name: "llm_credentials", kind: kindObject, entity: credentialsEntity, required: true},
		{name: "llm_parameters", kind: kindObject, entity: llmParametersEntity, required: true},
		{name: "data_context", kind: kindObject, entity: dataContextEntity, required: true},
		{name: "system_prompt", kind: kindObject, entity: systemPromptEntity, required: true},
		{name: "guardrails", kind: kindObject, entity: guardrailsEntity, def: map[string]any{}},
		{name: "structured_output", kind: kindObject, entity: structuredOutputEntity, def: map[string]any{}},
		{name: "conversation_memory", kind: kindObject, entity: conversationMemoryEntity, def: map[string]any{}},
		{name: "elicitation", kind: kindObject, entity: elicitationEntity, def: map[string]any{}},
		{name: "mcp_tools", kind: kindObject, entity: mcpToolsEntity, def: map[string]any{}},
		{name: "mcp_resources", kind: kindObject, entity: mcpResourcesEntity, def: map[string]any{}},
		{name: "dashboard_integration", kind: kindObject, entity: dashboardIntegrationEntity, def: map[string]any{}},
		{name: "logging", kind: kindObject, entity: loggingEntity, def: map[string]any{}},
	},
}

// validateSegmentationRules checks the known segmentation keys and lets
// arbitrary extras pass: this is one of the two open sections of the schema.
func validateSegmentationRules(path string, v any) []FieldError {
	m, ok := v.(map[string]any)
	if !ok {
		return []FieldError{{Path: path, Message: fmt.Sprintf("expected mapping, got %s", typeName(v))}}
	}

	var errs []FieldError

	if raw, ok := m["deal_size"]; ok && raw != nil {
		segments, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, FieldError{Path: joinPath(path, "deal_size"), Message: fmt.Sprintf("expected mapping, got %s", typeName(raw))})
		} else {
			for name, seg := range segments {
				spath := joinPath(joinPath(path, "deal_size"), name)
				switch def := seg.(type) {
				case string:
					// a bare description is allowed
				case map[string]any:
					if _, ok := def["description"].(string); !ok {
						errs = append(errs, FieldError{Path: joinPath(spath, "description"), Message: "required field missing"})
					}
					for _, bound := range []string{"min", "max"} {
						if bv, ok := def[bound]; ok && bv != nil {
							if _, ok := asFloat(bv); !ok {
								errs = append(errs, FieldError{Path: joinPath(spath, bound), Message: fmt.Sprintf("expected number, got %s", typeName(bv))})
							}
						}
					}
				default:
					errs = append(errs, FieldError{Path: spath, Message: fmt.Sprintf("expected mapping or string, got %s", typeName(seg))})
				}
			}
		}
	}

	if raw, ok := m["account_tier"]; ok && raw != nil {
		tiers, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, FieldError{Path: joinPath(path, "account_tier"), Message: fmt.Sprintf("expected mapping, got %s", typeName(raw))})
		} else {
			for name, def := range tiers {
				if _, ok := def.(string); !ok {
					errs = append(errs, FieldError{Path: joinPath(joinPath(path, "account_tier"), name), Message: fmt.Sprintf("expected string, got %s", typeName(def))})
				}
			}
		}
	}

	return errs
}

// Validate checks a generic mapping against the full schema and, on success,
// decodes it into a typed document. All violations are collected into one
// ValidationError rather than failing on the first. Defaults for absent
// optional fields are filled in, so the returned document serializes with
// every section present except omitted optional subsections.
func Validate(m map[string]any) (*ChatbotConfig, error) {
	if m == nil {
		m = map[string]any{}
	}
	work := cloneValue(m).(map[string]any)

	if errs := validateEntity("", work, configEntity); len(errs) > 0 {
		return nil, newValidationError(errs)
	}

	data, err := json.Marshal(work)
	if err != nil {
		return nil, fmt.Errorf("encoding validated mapping: %w", err)
	}
	var cfg ChatbotConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding validated mapping: %w", err)
	}
	return &cfg, nil
}
