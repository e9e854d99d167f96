package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarizeEmptyInput(t *testing.T) {
	t.Parallel()

	a := New()
	require.Empty(t, a.Summarize("", 200))
	require.Empty(t, a.Summarize("some text", 0))
}

func TestSummarizeTakesLeadingSentences(t *testing.T) {
	t.Parallel()

	a := New()
	text := "First sentence here. Second sentence follows. Third one is quite a bit longer than the others."
	summary := a.Summarize(text, 45)
	require.Equal(t, "First sentence here。Second sentence follows", summary)
}

func TestSummarizeNeverExceedsMaxChars(t *testing.T) {
	t.Parallel()

	a := New()
	text := strings.Repeat("word ", 100) + ". another sentence."
	summary := a.Summarize(text, 50)
	require.LessOrEqual(t, len([]rune(summary)), 50)
}

func TestKeywordsEmptyInput(t *testing.T) {
	t.Parallel()

	a := New()
	require.Nil(t, a.Keywords("", 8))
	require.Nil(t, a.Keywords("market", 0))
}

func TestKeywordsFrequencyOrder(t *testing.T) {
	t.Parallel()

	a := New()
	text := "market market market rates rates policy the and for with"
	got := a.Keywords(text, 8)
	require.Equal(t, []string{"market", "rates", "policy"}, got)
}

func TestKeywordsTopKAndStopwords(t *testing.T) {
	t.Parallel()

	a := New()
	text := "alpha beta gamma delta epsilon the and with from this"
	got := a.Keywords(text, 3)
	require.Len(t, got, 3)
	for _, kw := range got {
		require.NotContains(t, []string{"the", "and", "with", "from", "this"}, kw)
	}
}
