package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/cobol"
)

func payrollProgram() *cobol.Program {
	return &cobol.Program{
		ProgramID: "PAYROLL",
		Divisions: []string{"IDENTIFICATION", "DATA", "PROCEDURE"},
		DataItems: []cobol.DataItem{
			{Level: 1, Name: "WS-GROSS-PAY", Picture: "9(7)V99", JavaType: "BigDecimal", Value: "0"},
			{Level: 1, Name: "WS-HOURS", Picture: "9(3)", JavaType: "short", Value: "40"},
			{Level: 1, Name: "WS-NAME", Picture: "X(30)", JavaType: "String", Value: "'UNSET'"},
		},
		Paragraphs: []cobol.Paragraph{
			{
				Name: "MAIN-PARA",
				Statements: []cobol.Statement{
					{Kind: cobol.StmtPerform, Target: "CALC-PAY", Text: "PERFORM CALC-PAY"},
					{Kind: cobol.StmtDisplay, Source: "PAYROLL COMPLETE", Text: "DISPLAY 'PAYROLL COMPLETE'"},
					{Kind: cobol.StmtStopRun, Text: "STOP RUN"},
				},
			},
			{
				Name: "CALC-PAY",
				Statements: []cobol.Statement{
					{Kind: cobol.StmtMove, Target: "WS-HOURS", Source: "45", Text: "MOVE 45 TO WS-HOURS"},
					{Kind: cobol.StmtCompute, Target: "WS-GROSS-PAY", Source: "WS-HOURS * 12", Text: "COMPUTE WS-GROSS-PAY = WS-HOURS * 12"},
				},
			},
		},
	}
}

func TestTranslateStructural(t *testing.T) {
	res, err := Translate(context.Background(), "src/payroll.cbl", payrollProgram(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "Payroll", res.ClassName)
	assert.Equal(t, DefaultPackage, res.Package)
	assert.False(t, res.OracleUsed)

	assert.Contains(t, res.Source, "package com.migration.cobol;")
	assert.Contains(t, res.Source, "import java.math.BigDecimal;")
	assert.Contains(t, res.Source, "public class Payroll {")
	assert.Contains(t, res.Source, "private BigDecimal wsGrossPay = new BigDecimal(\"0\");")
	assert.Contains(t, res.Source, "private short wsHours = 40;")
	assert.Contains(t, res.Source, `private String wsName = "UNSET";`)
	assert.Contains(t, res.Source, "public BigDecimal getWsGrossPay() {")
	assert.Contains(t, res.Source, "public void mainPara() {")
	assert.Contains(t, res.Source, "calcPay();")
	assert.Contains(t, res.Source, "this.wsHours = 45;")
	assert.Contains(t, res.Source, "this.wsGrossPay = wsHours * 12;")
	assert.Contains(t, res.Source, "public static void main(String[] args) {")
	assert.Contains(t, res.Source, "program.mainPara();")

	require.Len(t, res.Signatures, 2)
	assert.Equal(t, "MAIN-PARA", res.Signatures[0].Paragraph)
	assert.Equal(t, "public void mainPara()", res.Signatures[0].Signature)
}

func TestTranslateDeterministic(t *testing.T) {
	a, err := Translate(context.Background(), "u", payrollProgram(), Options{})
	require.NoError(t, err)
	b, err := Translate(context.Background(), "u", payrollProgram(), Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Source, b.Source)
}

func TestTranslateUndefinedPerform(t *testing.T) {
	prog := payrollProgram()
	prog.Paragraphs[0].Statements[0].Target = "NO-SUCH-PARA"

	_, err := Translate(context.Background(), "src/payroll.cbl", prog, Options{})
	var trErr *TranslationError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, "src/payroll.cbl", trErr.Unit)
	assert.Contains(t, trErr.Reason, "NO-SUCH-PARA")
}

type stubOracle struct {
	body string
	err  error
	// extras records the extra-context argument of each call.
	extras []string
}

func (s *stubOracle) ProposeBody(_ context.Context, _ cobol.Paragraph, _ string, extra string) (string, error) {
	s.extras = append(s.extras, extra)
	if s.err != nil {
		return "", s.err
	}
	return s.body, nil
}

func TestTranslateOracleBody(t *testing.T) {
	oracle := &stubOracle{body: "this.wsHours = (short) 45;"}
	res, err := Translate(context.Background(), "u", payrollProgram(), Options{
		Oracle:       oracle,
		ExtraContext: "error: incompatible types",
	})
	require.NoError(t, err)

	assert.True(t, res.OracleUsed)
	assert.Contains(t, res.Source, "this.wsHours = (short) 45;")
	require.NotEmpty(t, oracle.extras)
	assert.Equal(t, "error: incompatible types", oracle.extras[0])
}

func TestTranslateOracleUnavailable(t *testing.T) {
	oracle := &stubOracle{err: &OracleUnavailableError{Cause: errors.New("rate limited")}}
	_, err := Translate(context.Background(), "u", payrollProgram(), Options{Oracle: oracle})

	var unavailable *OracleUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestTranslateOracleUnavailableWrapped(t *testing.T) {
	oracle := &stubOracle{err: fmt.Errorf("call failed: %w", &OracleUnavailableError{Cause: errors.New("timeout")})}
	_, err := Translate(context.Background(), "u", payrollProgram(), Options{Oracle: oracle})

	// Unavailability propagates even when the oracle wraps it.
	var unavailable *OracleUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestTranslateOracleRejectedProposalDegrades(t *testing.T) {
	oracle := &stubOracle{err: fmt.Errorf("oracle proposal rejected: body empty")}
	res, err := Translate(context.Background(), "u", payrollProgram(), Options{Oracle: oracle})
	require.NoError(t, err)

	assert.False(t, res.OracleUsed)
	assert.Contains(t, res.Source, "this.wsHours = 45;")
}

func TestTranslateCustomPackage(t *testing.T) {
	res, err := Translate(context.Background(), "u", payrollProgram(), Options{Package: "com.acme.ledger"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Source, "package com.acme.ledger;"))
}

func TestTranslateNilProgram(t *testing.T) {
	_, err := Translate(context.Background(), "u", nil, Options{})
	var trErr *TranslationError
	require.ErrorAs(t, err, &trErr)
}
