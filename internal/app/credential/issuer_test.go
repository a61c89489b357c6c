package credential

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestIssuer_DemoMode(t *testing.T) {
	req := require.New(t)

	for _, iss := range []*Issuer{
		NewIssuer("", ""),
		NewIssuer(DemoAppID, "secret"),
		NewIssuer("app", DemoCertificate),
	} {
		req.False(iss.Configured())
		cred := iss.Issue("conv_1", "user-1", time.Hour)
		req.True(cred.Demo)
		req.Equal(DemoToken, cred.Token)
		req.NoError(iss.Verify(DemoToken, "conv_1", "user-1"))
		req.ErrorIs(iss.Verify("forged", "conv_1", "user-1"), ErrInvalidCredential)
	}
}

func TestIssuer_IsDeterministic(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iss := NewIssuer("app", "certificate").WithClock(fixedClock(now))

	a := iss.Issue("conv_1", "user-1", time.Hour)
	b := iss.Issue("conv_1", "user-1", time.Hour)
	req.False(a.Demo)
	req.Equal(a.Token, b.Token)
	req.Equal(now.Add(time.Hour), a.ExpiresAt)

	other := iss.Issue("conv_1", "user-2", time.Hour)
	req.NotEqual(a.Token, other.Token)
}

func TestIssuer_Verify(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iss := NewIssuer("app", "certificate").WithClock(fixedClock(now))
	cred := iss.Issue("conv_1", "user-1", time.Hour)

	req.NoError(iss.Verify(cred.Token, "conv_1", "user-1"))
	req.ErrorIs(iss.Verify(cred.Token, "conv_2", "user-1"), ErrInvalidCredential)
	req.ErrorIs(iss.Verify(cred.Token, "conv_1", "user-2"), ErrInvalidCredential)
	req.ErrorIs(iss.Verify(DemoToken, "conv_1", "user-1"), ErrInvalidCredential)

	// Another secret cannot verify it
	stranger := NewIssuer("app", "other-certificate").WithClock(fixedClock(now))
	req.ErrorIs(stranger.Verify(cred.Token, "conv_1", "user-1"), ErrInvalidCredential)

	// Expired after the ttl
	iss.WithClock(fixedClock(now.Add(2 * time.Hour)))
	req.ErrorIs(iss.Verify(cred.Token, "conv_1", "user-1"), ErrInvalidCredential)
}

func TestSanitize(t *testing.T) {
	req := require.New(t)
	req.Equal("conv_123", Sanitize("conv_123"))
	req.Equal("abc", Sanitize("a/b\\c"))
	req.Equal("hello world", Sanitize("hello world"))
	req.Equal(Placeholder, Sanitize(""))
	req.Equal(Placeholder, Sanitize("日本"))
	req.Len(Sanitize(strings.Repeat("x", 100)), MaxIdentifierLen)
	req.Equal("a[b]c{d}", Sanitize("a[b]c{d}"))
}
