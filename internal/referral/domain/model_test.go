package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCode(t *testing.T) {
	cases := map[string][]string{
		"FRIEND1234": {"FRIEND", "1234"},
		"1234FRIEND": {"1234", "FRIEND"},
		"FRIEND":     {"FRIEND"},
		"A1B2":       {"A", "1", "B", "2"},
		"FR-1":       {"FR-", "1"},
		"":           nil,
	}
	for in, want := range cases {
		assert.Equal(t, want, SplitCode(in), in)
	}
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Number: 0, Size: DefaultPageSize}, Page{Number: -3}.Normalize())
	p := Page{Number: 2, Size: 10}.Normalize()
	assert.Equal(t, 20, p.Offset())
}
