package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	actor := Actor{
		AccountID: "acct-1",
		Email:     "owner@example.com",
		IPAddress: "203.0.113.7",
		UserAgent: "amp-cli/1.0",
	}

	ctx := WithActor(context.Background(), actor)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, actor, got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, ok = FromContext(nil)
	require.False(t, ok)
}

func TestWithActorNilContext(t *testing.T) {
	ctx := WithActor(nil, Actor{AccountID: "acct-2"})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "acct-2", got.AccountID)
}
