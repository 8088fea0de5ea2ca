package zenflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeMask(t *testing.T) {
	nodeId := int64(4)
	node, err := NewNode(nodeId)
	require.NoError(t, err)
	id := node.Generate()

	assert.Equal(t, nodeId, GetNodeId(id.Int64()))
	assert.Equal(t, nodeId, id.Int64()&GetNodeMask()>>int64(nodeShift))
}

func TestNewNodeWrapsLargeIds(t *testing.T) {
	node, err := NewNode(nodeMax + 5)
	require.NoError(t, err)
	assert.Equal(t, int64(4), GetNodeId(node.Generate().Int64()))
}

func TestGlobalNodeIsShared(t *testing.T) {
	a := GlobalNode()
	b := GlobalNode()
	assert.Same(t, a, b)
	assert.NotEqual(t, a.Generate(), b.Generate())
}
