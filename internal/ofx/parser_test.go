package ofx

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/model"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250301120000[0:GMT]
<DTEND>20250331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250315120000[0:GMT]
<TRNAMT>-25.50
<FITID>2025031501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250320120000[0:GMT]
<TRNAMT>1500.00
<FITID>2025032001
<NAME>PAYROLL DEPOSIT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250331120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParseFile_BankStatement(t *testing.T) {
	parser := NewParser()

	txns, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	coffee := txns[0]
	assert.Equal(t, "2025031501", coffee.ExternalID)
	assert.Equal(t, "STARBUCKS STORE #1234", coffee.Description)
	// OFX -25.50 is a debit; stored as a positive expense.
	assert.Equal(t, model.Cents(2550), coffee.Amount)
	assert.Equal(t, 2025, coffee.Date.Year())

	payroll := txns[1]
	assert.Equal(t, "2025032001", payroll.ExternalID)
	assert.Equal(t, model.Cents(-150000), payroll.Amount)
}

func TestParseFile_InvalidContent(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseFile(context.Background(), strings.NewReader("not an ofx file"))
	assert.Error(t, err)
}

func TestPreprocessOFX(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "mixed case severity",
			input: "<SEVERITY>Info</SEVERITY>",
			want:  "<SEVERITY>INFO</SEVERITY>",
		},
		{
			name:  "missing closing bracket",
			input: "<BANKID\n",
			want:  "<BANKID>\n",
		},
		{
			name:  "leading whitespace",
			input: "\n\n  OFXHEADER:100",
			want:  "OFXHEADER:100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.preprocessOFX(tt.input)
			assert.Equal(t, strings.TrimRight(tt.want, "\n"), strings.TrimRight(got, "\n"))
		})
	}
}

func TestRatToCents(t *testing.T) {
	tests := []struct {
		name string
		num  int64
		den  int64
		want model.Cents
	}{
		{"whole dollars", 25, 1, 2500},
		{"two decimals", -2550, 100, -2550},
		{"rounds half away from zero", 1235, 1000, 124},
		{"rounds half away from zero negative", -1235, 1000, -124},
		{"third decimal down", 12344, 10000, 123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ratToCents(big.NewRat(tt.num, tt.den))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "Whole Foods", cleanDescription("Whole Foods", "memo"))
	assert.Equal(t, "card 1234 groceries", cleanDescription("PURCHASE", "card 1234 groceries"))
	assert.Equal(t, "memo only", cleanDescription("", "memo only"))
}
