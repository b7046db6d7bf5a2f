package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSRFTokenLifecycle(t *testing.T) {
	mgr := NewCSRFManager("secret")
	sess := &Session{values: map[string]string{}}
	ctx := context.Background()

	token, err := mgr.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := mgr.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, mgr.VerifyToken(ctx, sess, token))
	require.ErrorIs(t, mgr.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, mgr.VerifyToken(ctx, sess, token+"x"), ErrCSRFTokenMismatch)
}

func TestCSRFRejectsTokenSignedWithOtherSecret(t *testing.T) {
	ctx := context.Background()
	sess := &Session{values: map[string]string{}}
	forged, err := NewCSRFManager("other").EnsureToken(ctx, sess)
	require.NoError(t, err)

	require.ErrorIs(t, NewCSRFManager("secret").VerifyToken(ctx, sess, forged), ErrCSRFTokenMismatch)
}

func TestCSRFMissingSessionToken(t *testing.T) {
	sess := &Session{values: map[string]string{}}
	require.ErrorIs(t, NewCSRFManager("secret").VerifyToken(context.Background(), sess, "abc.def"), ErrCSRFTokenMissing)
}
