package docstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Covers", "acme-covers"},
		{"jane.doe@example.com", "jane-doe-example-com"},
		{"  --Weird__Name!!  ", "weird-name"},
		{"ÜmläutÖrder", "ml-ut-rder"},
		{"", "unnamed"},
		{"!!!", "unnamed"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeFolderName(tc.in), "input %q", tc.in)
	}
}

func TestSanitizeFolderNameTruncates(t *testing.T) {
	long := strings.Repeat("abc-", 30)

	got := SanitizeFolderName(long)
	assert.LessOrEqual(t, len(got), 50)
	assert.False(t, strings.HasSuffix(got, "-"), "no trailing dash after truncation")
}

func TestSanitizeFolderNameOnlySafeChars(t *testing.T) {
	got := SanitizeFolderName("Order #42 / Straße (final).pdf")
	for _, r := range got {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		assert.Truef(t, ok, "unexpected char %q in %q", r, got)
	}
}
