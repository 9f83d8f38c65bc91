package agora

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-app-id", "test-certificate", time.Hour)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_RequiresCredentials(t *testing.T) {
	_, err := NewTokenService("", "cert", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService("app", "", time.Hour)
	assert.Error(t, err)
}

func TestGenerateChannelName_UniqueAndBounded(t *testing.T) {
	svc := newTestTokenService(t)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		name, err := svc.GenerateChannelName("acct-8f14e45f-ceea-467f-aabb")
		require.NoError(t, err)

		assert.LessOrEqual(t, len(name), 64)
		for _, b := range []byte(name) {
			require.Less(t, b, byte(128), "channel name must be ASCII: %q", name)
		}

		_, dup := seen[name]
		require.False(t, dup, "duplicate channel name %q", name)
		seen[name] = struct{}{}
	}
}

func TestGenerateChannelName_SanitizesPrefix(t *testing.T) {
	svc := newTestTokenService(t)

	name, err := svc.GenerateChannelName("émile!!@@##")
	require.NoError(t, err)
	assert.Regexp(t, `^mile-\d+-`, name)

	// An id with nothing usable falls back to a fixed prefix.
	name, err = svc.GenerateChannelName("!!!")
	require.NoError(t, err)
	assert.Regexp(t, `^ch-\d+-`, name)
}

func TestIssuePublisherCredential_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	cred, err := svc.IssuePublisherCredential("acct-1")
	require.NoError(t, err)
	require.NotEmpty(t, cred.ChannelName)
	require.NotZero(t, cred.UID)
	assert.Greater(t, cred.UID, int64(0))

	claims, err := svc.ParseToken(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, cred.ChannelName, claims.ChannelName)
	assert.Equal(t, cred.UID, claims.UID)
	assert.Equal(t, RolePublisher, claims.Role)
	assert.Equal(t, "test-app-id", claims.Issuer)
}

func TestIssueSubscriberCredential_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	cred, err := svc.IssueSubscriberCredential("chan-abc")
	require.NoError(t, err)
	assert.Equal(t, "chan-abc", cred.ChannelName)

	claims, err := svc.ParseToken(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, "chan-abc", claims.ChannelName)
	assert.Equal(t, RoleSubscriber, claims.Role)
}

func TestParseToken_RejectsForeignSignature(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService("test-app-id", "different-certificate", time.Hour)
	require.NoError(t, err)

	cred, err := other.IssuePublisherCredential("acct-1")
	require.NoError(t, err)

	_, err = svc.ParseToken(cred.Token)
	assert.Error(t, err)
}
