package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithGateway(ctx, "NOON")
	ctx = WithOrderRef(ctx, "ORDER:42")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "NOON", GatewayFromContext(ctx))
	assert.Equal(t, "ORDER:42", OrderRefFromContext(ctx))
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := WithGateway(context.Background(), "")
	assert.Empty(t, GatewayFromContext(ctx))
}
