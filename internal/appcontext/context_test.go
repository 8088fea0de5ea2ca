package appcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandName(t *testing.T) {
	ctx := WithCommand(context.Background(), "deploy")

	name, found := CommandFromContext(ctx)
	assert.True(t, found)
	assert.Equal(t, "deploy", name)

	name, found = CommandFromContext(context.Background())
	assert.False(t, found)
	assert.Empty(t, name)
}

func TestRequestId(t *testing.T) {
	ctx := WithRequestId(context.Background(), "abc")

	id, found := RequestIdFromContext(ctx)
	assert.True(t, found)
	assert.Equal(t, "abc", id)
}
