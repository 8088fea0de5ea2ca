package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchLike(t *testing.T) {
	assert.True(t, MatchLike("invoice%", "invoiceCase"))
	assert.True(t, MatchLike("%Case", "invoiceCase"))
	assert.True(t, MatchLike("inv_ice", "invoice"))
	assert.True(t, MatchLike("a.b%", "a.bc"))
	assert.False(t, MatchLike("a.b%", "axbc"))
	assert.False(t, MatchLike("Invoice%", "invoiceCase"))
	assert.False(t, MatchLike("invoice", "invoiceCase"))
}

func TestPageApply(t *testing.T) {
	start, end := Page{}.Apply(5)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)

	start, end = Page{FirstResult: 2, MaxResults: 2}.Apply(5)
	assert.Equal(t, 2, start)
	assert.Equal(t, 4, end)

	start, end = Page{FirstResult: 7, MaxResults: 2}.Apply(5)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}
