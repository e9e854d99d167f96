package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURLHashDeterministic(t *testing.T) {
	t.Parallel()

	a := URLHash("https://example.org/articles/1")
	b := URLHash("https://example.org/articles/1")
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	require.NotEqual(t, a, URLHash("https://example.org/articles/2"))
}

func TestURLHashEmptyString(t *testing.T) {
	t.Parallel()

	// SHA-256 of the empty string is a fixed constant, not an error.
	require.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		URLHash(""))
}

func TestSimhashSelfDistanceZero(t *testing.T) {
	t.Parallel()

	text := "central bank raises interest rates amid inflation concerns"
	require.Zero(t, HammingDistance(Simhash(text), Simhash(text)))
}

func TestSimhashEmptyText(t *testing.T) {
	t.Parallel()

	require.Zero(t, Simhash(""))
	require.Zero(t, Simhash("  \t\n "))
}

func TestSimhashSmallEditStaysClose(t *testing.T) {
	t.Parallel()

	base := "The government announced a new infrastructure spending plan today " +
		"covering roads bridges and rural broadband across several provinces"
	edited := base + " according to officials"

	distance := HammingDistance(Simhash(base), Simhash(edited))
	require.LessOrEqual(t, distance, 16, "appending one clause should barely move the fingerprint")
}

func TestSimhashUnrelatedTextsDiffer(t *testing.T) {
	t.Parallel()

	a := Simhash("quarterly earnings beat analyst expectations on cloud revenue growth")
	b := Simhash("local football team wins championship after dramatic penalty shootout")
	require.Greater(t, HammingDistance(a, b), 8)
}

func TestSimhashHandlesCJK(t *testing.T) {
	t.Parallel()

	a := Simhash("央行 宣布 下调 基准 利率")
	require.NotZero(t, a)
	require.Zero(t, HammingDistance(a, Simhash("央行 宣布 下调 基准 利率")))
}

func TestEngineNearDuplicate(t *testing.T) {
	t.Parallel()

	e := NewEngine(3)
	require.True(t, e.NearDuplicate(0b1011, 0b1011))
	require.True(t, e.NearDuplicate(0b1011, 0b0011))
	require.False(t, e.NearDuplicate(0, 0b11110000))

	strict := NewEngine(0)
	require.False(t, strict.NearDuplicate(0b1, 0b0))
}
