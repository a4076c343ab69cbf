package ticketcode

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	code := NewGenerator().Generate()

	assert.Len(t, code, 26)
	assert.Regexp(t, regexp.MustCompile(`^[a-z2-7]+$`), code)
}

func TestGenerate_Unique(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		code := g.Generate()
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}
