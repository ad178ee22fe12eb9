package unicodecheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsZeroWidthChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"empty string", "", false},
		{"plain id", "github", false},
		{"zero width space", "git\u200Bhub", true},
		{"zero width joiner", "git\u200Dhub", true},
		{"right-to-left mark", "git\u200Fhub", true},
		{"byte order mark", "\uFEFFgithub", true},
		{"CJK characters", "\u4E16\u754C", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContainsZeroWidthChars(tt.input))
		})
	}
}

func TestContainsBidiOverrides(t *testing.T) {
	assert.False(t, ContainsBidiOverrides("github"))
	assert.True(t, ContainsBidiOverrides("git\u202Ebuh"))
	assert.True(t, ContainsBidiOverrides("git\u2066hub"))
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"simple", "github", ""},
		{"dashes and dots", "my-org.keycloak_1", ""},
		{"composed accent", "caf\u00e9", ""},
		{"empty", "", "invalid identifier: empty"},
		{"invalid utf8", "git\xffhub", "invalid identifier: not valid UTF-8"},
		{"too long", strings.Repeat("a", MaxIdentifierLength+1), "invalid identifier: longer than 128 characters"},
		{"newline", "git\nhub", "invalid identifier: contains control characters"},
		{"space", "git hub", "invalid identifier: contains whitespace"},
		{"ideographic space", "git\u3000hub", "invalid identifier: contains whitespace"},
		{"zero width", "git\u200Bhub", "invalid identifier: contains zero-width characters"},
		{"bidi override", "git\u202Ehub", "invalid identifier: contains bidirectional overrides"},
		{"decomposed accent", "cafe\u0301", "invalid identifier: not NFC normalized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidIdentifier)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestValidateIdentifier_MaxLengthCountsRunes(t *testing.T) {
	assert.NoError(t, ValidateIdentifier(strings.Repeat("\u00E9", MaxIdentifierLength)))
}

func TestSanitizeForLogging(t *testing.T) {
	assert.Equal(t, "github", SanitizeForLogging("github"))
	assert.Equal(t, "git[CTRL]hub", SanitizeForLogging("git\nhub"))
	assert.Equal(t, "git[ZW]hub", SanitizeForLogging("git\u200Bhub"))
}
