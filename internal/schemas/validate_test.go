package schemas

import (
	"errors"
	"testing"
)

func TestValidateProposal(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "valid proposal",
			doc:  `{"body": "this.wsTotal = this.wsHours * 25;", "imports": ["java.math.BigDecimal"]}`,
		},
		{
			name: "body only",
			doc:  `{"body": "return;"}`,
		},
		{
			name:    "missing body",
			doc:     `{"imports": ["java.util.List"]}`,
			wantErr: true,
		},
		{
			name:    "empty body",
			doc:     `{"body": ""}`,
			wantErr: true,
		},
		{
			name:    "unexpected field",
			doc:     `{"body": "return;", "signature": "void main()"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			doc:     "public void main() {}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProposal(tt.doc)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateProposalErrorDetails(t *testing.T) {
	err := ValidateProposal(`{"imports": []}`)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Errors) == 0 {
		t.Error("ValidationError carries no field errors")
	}
}
