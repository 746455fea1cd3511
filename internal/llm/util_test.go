package llm

import (
	"testing"
)

func TestCleanJSONBlock_MarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "```json\n{\"body\": \"return;\"}\n```",
			expected: `{"body": "return;"}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"body\": \"return;\"}\n```",
			expected: `{"body": "return;"}`,
		},
		{
			name:     "code block with language",
			input:    "```java\n{\"body\": \"return;\"}\n```",
			expected: `{"body": "return;"}`,
		},
		{
			name:     "plain JSON",
			input:    `{"body": "return;"}`,
			expected: `{"body": "return;"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanJSONBlock(tt.input)
			if result != tt.expected {
				t.Errorf("CleanJSONBlock() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestCleanJSONBlock_SurroundingChatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "preamble before JSON object",
			input:    "Here is the method body:\n{\"body\": \"this.total = 0;\"}",
			expected: `{"body": "this.total = 0;"}`,
		},
		{
			name:     "multi-sentence preamble",
			input:    "I translated the paragraph. The arithmetic maps directly. Result: {\"body\": \"this.total += amount;\"}",
			expected: `{"body": "this.total += amount;"}`,
		},
		{
			name:     "trailing chatter",
			input:    "{\"body\": \"return;\"}\n\nLet me know if you need anything else!",
			expected: `{"body": "return;"}`,
		},
		{
			name:     "preamble before array",
			input:    "The required imports:\n[\"java.math.BigDecimal\"]",
			expected: `["java.math.BigDecimal"]`,
		},
		{
			name:     "escaped quotes inside",
			input:    "Result: {\"body\": \"logger.info(\\\"done\\\");\"}",
			expected: `{"body": "logger.info(\"done\");"}`,
		},
		{
			name:     "nested objects",
			input:    "Output:\n{\"outer\": {\"inner\": \"value\"}}",
			expected: `{"outer": {"inner": "value"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanJSONBlock(tt.input)
			if result != tt.expected {
				t.Errorf("CleanJSONBlock() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple object",
			input:    `{"body": "return;"}`,
			expected: `{"body": "return;"}`,
		},
		{
			name:     "object with array",
			input:    `{"imports": ["java.util.logging.Logger"]}`,
			expected: `{"imports": ["java.util.logging.Logger"]}`,
		},
		{
			name:     "trailing text",
			input:    `{"body": "return;"} and some more text`,
			expected: `{"body": "return;"}`,
		},
		{
			name:     "braces inside string",
			input:    `{"body": "if (x > 0) { return; }"}`,
			expected: `{"body": "if (x > 0) { return; }"}`,
		},
		{
			name:     "unbalanced",
			input:    `{"body": "return;"`,
			expected: "",
		},
		{
			name:     "not starting with brace",
			input:    "not json",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractJSONObject(tt.input)
			if result != tt.expected {
				t.Errorf("extractJSONObject() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple array",
			input:    `["a", "b", "c"]`,
			expected: `["a", "b", "c"]`,
		},
		{
			name:     "array of objects",
			input:    `[{"id": 1}, {"id": 2}]`,
			expected: `[{"id": 1}, {"id": 2}]`,
		},
		{
			name:     "trailing text",
			input:    `[1, 2, 3] extra stuff`,
			expected: `[1, 2, 3]`,
		},
		{
			name:     "not starting with bracket",
			input:    "not array",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractJSONArray(tt.input)
			if result != tt.expected {
				t.Errorf("extractJSONArray() = %q, want %q", result, tt.expected)
			}
		})
	}
}
