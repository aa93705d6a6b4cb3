package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, UserIDFromContext(ctx))
	assert.Equal(t, Client{}, ClientFromContext(ctx))

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithUserID(ctx, "42")
	ctx = WithClient(ctx, Client{IPAddress: "10.0.0.1", UserAgent: "curl"})

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "42", UserIDFromContext(ctx))
	assert.Equal(t, "10.0.0.1", ClientFromContext(ctx).IPAddress)
}
