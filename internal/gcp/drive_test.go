package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `plain_name`, escapeQuery(`plain_name`))
	assert.Equal(t, `O\'Brien`, escapeQuery(`O'Brien`))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
	// Backslashes are doubled before quotes are escaped, so a pre-escaped
	// quote stays a literal backslash plus an escaped quote.
	assert.Equal(t, `a\\\'b`, escapeQuery(`a\'b`))
}
