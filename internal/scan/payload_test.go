package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePayload(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"identifier: P1", "P1", true},
		{"  IDENTIFIER:P-42  ", "P-42", true},
		{"P7", "P7", true},
		{"identifier:   ", "", false},
		{"   ", "", false},
		{"ident", "ident", true},
	}
	for _, c := range cases {
		got, ok := ParsePayload(c.raw, DefaultLabel)
		assert.Equal(t, c.want, got, c.raw)
		assert.Equal(t, c.ok, ok, c.raw)
	}
}

func TestParsePayloadWithoutLabel(t *testing.T) {
	got, ok := ParsePayload(" identifier: P1 ", "")
	assert.True(t, ok)
	assert.Equal(t, "identifier: P1", got)
}
