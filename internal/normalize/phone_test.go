package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDialable(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"   ":               "",
		"0612345678":        "+33612345678",
		"06 12 34 56 78":    "+33612345678",
		"06.12.34.56.78":    "+33612345678",
		"+33612345678":      "+33612345678",
		"+33 6 12 34 56 78": "+33612345678",
		"0033612345678":     "+33612345678",
		"33612345678":       "+33612345678",
		"+15551234567":      "+15551234567",
		"15":                "15",
		"112":               "112",
		"00":                "",
		"+":                 "",
		"anonymous":         "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToDialable(in), "input %q", in)
	}
}

func TestToDialable_Idempotent(t *testing.T) {
	inputs := []string{
		"", "0612345678", "+33612345678", "0033612345678", "33612345678",
		"00", "000", "0000612345678", "+0612345678", "(555) 123-4567",
		"+", "++33", "0 0 3 3 6", "3361234567", "012345678", "anonymous",
	}
	for _, in := range inputs {
		once := ToDialable(in)
		assert.Equal(t, once, ToDialable(once), "input %q", in)
	}
}

func TestToDisplayFormat(t *testing.T) {
	cases := map[string]string{
		"":              Placeholder,
		"  ":            Placeholder,
		"+33612345678":  "06 12 34 56 78",
		"0612345678":    "06 12 34 56 78",
		"0033612345678": "06 12 34 56 78",
		"33612345678":   "06 12 34 56 78",
		"+15551234567":  "+15551234567",
		"112":           "112",
		"anonymous":     "anonymous",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToDisplayFormat(in), "input %q", in)
	}
}
