package tier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	attrs Attributes
	err   error
	delay time.Duration
}

func (d *stubDirectory) TierAttributes(ctx context.Context, subjectID string) (Attributes, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return Attributes{}, ctx.Err()
		}
	}
	return d.attrs, d.err
}

func TestFromAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs Attributes
		want  Tier
	}{
		{"elevated subscription", Attributes{Subscription: "elevated"}, Elevated},
		{"high trust score", Attributes{TrustScore: 0.95}, Elevated},
		{"premium subscription", Attributes{Subscription: "premium"}, Premium},
		{"mid trust score", Attributes{TrustScore: 0.75}, Premium},
		{"no attributes", Attributes{}, Standard},
		{"low trust score", Attributes{TrustScore: 0.3}, Standard},
		{"score exactly at elevated threshold", Attributes{TrustScore: 0.9}, Elevated},
		{"score exactly at premium threshold", Attributes{TrustScore: 0.7}, Premium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, FromAttributes(tt.attrs))
		})
	}
}

func TestClassify_FailsOpenOnError(t *testing.T) {
	c := NewClassifier(&stubDirectory{err: errors.New("directory down")}, time.Second)

	got := c.Classify(context.Background(), "subject-1")
	require.Equal(t, Standard, got, "lookup error must fall back to standard")
}

func TestClassify_FailsOpenOnNotFound(t *testing.T) {
	c := NewClassifier(&stubDirectory{err: ErrNotFound}, time.Second)

	require.Equal(t, Standard, c.Classify(context.Background(), "unknown"))
}

func TestClassify_FailsOpenOnTimeout(t *testing.T) {
	c := NewClassifier(&stubDirectory{
		attrs: Attributes{Subscription: "elevated"},
		delay: 200 * time.Millisecond,
	}, 10*time.Millisecond)

	require.Equal(t, Standard, c.Classify(context.Background(), "subject-1"),
		"slow directory must not promote the subject")
}

func TestClassify_UsesDirectoryAttributes(t *testing.T) {
	c := NewClassifier(&stubDirectory{attrs: Attributes{Subscription: "premium"}}, time.Second)

	require.Equal(t, Premium, c.Classify(context.Background(), "subject-1"))
}

func TestDefaultRetention_ArchiveOrdering(t *testing.T) {
	policies := DefaultRetention()
	require.Len(t, policies, 3)

	for tr, p := range policies {
		require.Greater(t, p.ArchiveDays, p.ColdDays, "tier %s", tr)
		require.Greater(t, p.ColdDays, p.WarmDays, "tier %s", tr)
		require.Greater(t, p.WarmDays, p.HotDays, "tier %s", tr)
	}

	require.Greater(t, policies[Elevated].ArchiveDays, policies[Standard].ArchiveDays)
}
