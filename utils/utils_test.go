package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { PasswordCost = bcrypt.DefaultCost })

	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

func TestSanitizeAndExcerpt(t *testing.T) {
	assert.Equal(t, `<p>hi</p>`, Sanitize(`<p>hi</p><script>alert(1)</script>`))
	assert.Equal(t, "Hello world", StripTags("<b>Hello</b> world "))

	assert.Equal(t, "short text", Excerpt("<p>short   text</p>", 200))
	long := strings.Repeat("abc ", 100)
	ex := Excerpt(long, 20)
	assert.LessOrEqual(t, len([]rune(ex)), 20)
	assert.True(t, strings.HasSuffix(ex, "..."))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []uint{3, 1, 2}, Unique([]uint{3, 1, 3, 2, 1}))
	assert.Equal(t, []uint{}, Unique[uint](nil))
}
