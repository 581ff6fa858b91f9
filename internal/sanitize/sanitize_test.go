package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"default index name", "combined_vector_db", "combined_vector_db"},
		{"uppercase and punctuation", "My Books!", "my_books"},
		{"path characters", "../../etc", "etc"},
		{"only traversal", "../..", DefaultIdentifier},
		{"empty", "", DefaultIdentifier},
		{"collapses underscores", "a---b___c", "a_b_c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.input))
		})
	}
}

func TestIdentifier_Truncates(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := Identifier(long)
	assert.Len(t, got, MaxIdentifierLength)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", MaxIdentifierLength-HashSuffixLength)))
	assert.NotEqual(t, got, Identifier(long+"b"), "hash suffix keeps long names distinct")
}

func TestTruncateWithHash_RuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 40) // 80 bytes
	got := truncateWithHash(s, 20)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 20)
}
