package feedback

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in      string
		want    Rating
		wantErr bool
	}{
		{"positive", RatingPositive, false},
		{" Negative ", RatingNegative, false},
		{"neutral", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRating(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRating, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestStore_AddTruncatesAnswer(t *testing.T) {
	s := newTestStore(t)
	answer := strings.Repeat("é", 250)

	e, err := s.Add(context.Background(), " When is the deadline? ", answer, RatingPositive, " thanks ")
	require.NoError(t, err)
	assert.Len(t, e.ID, 26)
	assert.Equal(t, "When is the deadline?", e.Question)
	assert.Equal(t, 200, len([]rune(e.AnswerPreview)))
	assert.Equal(t, "thanks", e.Comment)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = s.Add(context.Background(), "q", "a", Rating("meh"), "")
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, q := range []string{"first", "second", "third"} {
		_, err := s.Add(ctx, q, "a", RatingPositive, "")
		require.NoError(t, err)
	}

	entries, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Question)
	assert.Equal(t, "second", entries[1].Question)
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, st)

	for _, r := range []Rating{RatingPositive, RatingPositive, RatingNegative} {
		_, err := s.Add(ctx, "q", "a", r, "")
		require.NoError(t, err)
	}
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 3, Positive: 2, Negative: 1, SatisfactionRate: 66.7}, st)
}
