package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParseStartTime(t *testing.T) {
	d, err := ParseStartTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, d)

	_, err = ParseStartTime("9.30")
	assert.Error(t, err)
}

func TestLessonSlotOverlap(t *testing.T) {
	a, ok, err := LessonSlot(day("2024-01-10"), strPtr("10:00"), dec("1.5"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11*time.Hour+30*time.Minute, a.End)

	b, _, _ := LessonSlot(day("2024-01-10"), strPtr("11:00"), dec("1"))
	assert.True(t, a.Overlaps(b))

	touching, _, _ := LessonSlot(day("2024-01-10"), strPtr("11:30"), dec("1"))
	assert.False(t, a.Overlaps(touching))

	otherDay, _, _ := LessonSlot(day("2024-01-11"), strPtr("10:00"), dec("1"))
	assert.False(t, a.Overlaps(otherDay))
}

func TestLessonSlotWithoutStartTime(t *testing.T) {
	_, ok, err := LessonSlot(day("2024-01-10"), nil, dec("1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartAfter(t *testing.T) {
	next, err := StartAfter(strPtr("10:00"), dec("2"))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "12:00", *next)

	next, err = StartAfter(strPtr("09:15"), dec("0.75"))
	require.NoError(t, err)
	assert.Equal(t, "10:00", *next)

	next, err = StartAfter(strPtr("23:00"), dec("1"))
	require.NoError(t, err)
	assert.Nil(t, next)

	next, err = StartAfter(nil, dec("1"))
	require.NoError(t, err)
	assert.Nil(t, next)
}
