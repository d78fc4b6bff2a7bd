package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTabs(t *testing.T) {
	refs := parseTabs(" a1, b2:sub ,, c3:")
	require.Len(t, refs, 3)
	assert.Equal(t, "a1", refs[0].StashID)
	assert.Nil(t, refs[0].SubstashID)
	require.NotNil(t, refs[1].SubstashID)
	assert.Equal(t, "sub", *refs[1].SubstashID)
	assert.Nil(t, refs[2].SubstashID)

	assert.Empty(t, parseTabs(""))
}
