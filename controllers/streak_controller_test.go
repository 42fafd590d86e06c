package controllers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/blogstreak/utils"
)

func TestStreakCacheKeyChangesWithDay(t *testing.T) {
	before := streakCacheKey(7, 365, "2024-01-10")
	after := streakCacheKey(7, 365, "2024-01-11")
	assert.NotEqual(t, before, after)
	assert.NotEqual(t, before, streakCacheKey(7, 30, "2024-01-10"))

	// invalidation for user 7 clears every day and window, and never user 70
	prefix := utils.CacheKeyStreak + "7:"
	assert.True(t, strings.HasPrefix(before, prefix))
	assert.True(t, strings.HasPrefix(after, prefix))
	assert.False(t, strings.HasPrefix(streakCacheKey(70, 365, "2024-01-10"), prefix))
}
