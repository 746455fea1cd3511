package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/cobol"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/llm"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/schemas"
)

// Oracle proposes idiomatic Java method bodies for translated paragraphs.
// The translator remains the sole authority on signatures and types; the
// oracle only ever fills in bodies, and its output must be reproducible from
// the IR plus the provided context.
type Oracle interface {
	// ProposeBody returns a Java method body for the paragraph. extra carries
	// additional context on retries, typically compiler diagnostics.
	ProposeBody(ctx context.Context, paragraph cobol.Paragraph, signature string, extra string) (string, error)
}

// BodyProposal is the JSON document the oracle must return.
type BodyProposal struct {
	Body    string   `json:"body"`
	Imports []string `json:"imports,omitempty"`
	Notes   string   `json:"notes,omitempty"`
}

// GeminiOracle backs the oracle port with an LLM client.
type GeminiOracle struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewGeminiOracle creates an oracle on top of an LLM client.
func NewGeminiOracle(client llm.Client) *GeminiOracle {
	return &GeminiOracle{client: client, tier: llm.TierStandard}
}

// ProposeBody asks the model for a method body and validates the response
// against the proposal schema before accepting it.
func (o *GeminiOracle) ProposeBody(ctx context.Context, paragraph cobol.Paragraph, signature string, extra string) (string, error) {
	prompt := buildBodyPrompt(paragraph, signature, extra)

	tier := o.tier
	if extra != "" {
		// Retries carry compiler diagnostics and need the stronger model.
		tier = llm.TierAdvanced
	}

	raw, err := o.client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return "", &OracleUnavailableError{Cause: err}
	}

	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.ValidateProposal(cleaned); err != nil {
		return "", fmt.Errorf("oracle proposal rejected: %w", err)
	}

	var proposal BodyProposal
	if err := json.Unmarshal([]byte(cleaned), &proposal); err != nil {
		return "", fmt.Errorf("oracle proposal unreadable: %w", err)
	}
	return proposal.Body, nil
}

func buildBodyPrompt(paragraph cobol.Paragraph, signature string, extra string) string {
	var sb strings.Builder
	sb.WriteString("You are migrating a legacy COBOL paragraph to Java.\n")
	sb.WriteString("Write only the body for this exact method signature; do not change it:\n\n")
	sb.WriteString(signature)
	sb.WriteString("\n\nCOBOL paragraph ")
	sb.WriteString(paragraph.Name)
	sb.WriteString(":\n")
	for _, stmt := range paragraph.Statements {
		sb.WriteString("    ")
		sb.WriteString(stmt.Text)
		sb.WriteString("\n")
	}
	if extra != "" {
		sb.WriteString("\nA previous attempt failed to compile. Diagnostics:\n")
		sb.WriteString(extra)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond with JSON: {\"body\": \"<java statements>\", \"imports\": [\"...\"]}.\n")
	sb.WriteString("Do not include the method signature or braces around the body.\n")
	return sb.String()
}
