package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndMatch(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"user:*", "user:123", true},
		{"user:*", "user:", true},
		{"user:*", "users:123", false},
		{"user:*:profile", "user:123:profile", true},
		{"user:*:profile", "user:123:settings", false},
		{"user:???", "user:123", true},
		{"user:???", "user:12", false},
		{"exact-key", "exact-key", true},
		{"exact-key", "exact-key-2", false},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"*", "anything at all", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.key, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.key))
		})
	}
}

func TestCompileEmptyPattern(t *testing.T) {
	_, err := Compile("")
	assert.Error(t, err)
}

func TestIsLiteral(t *testing.T) {
	p, err := Compile("user:123")
	require.NoError(t, err)
	assert.True(t, p.IsLiteral())

	p, err = Compile("user:*")
	require.NoError(t, err)
	assert.False(t, p.IsLiteral())

	p, err = Compile("user:?")
	require.NoError(t, err)
	assert.False(t, p.IsLiteral())
}

func TestRedisPattern(t *testing.T) {
	assert.Equal(t, "user:*", RedisPattern("user:*"))
	assert.Equal(t, "user:?", RedisPattern("user:?"))
	assert.Equal(t, `user\[1\]:*`, RedisPattern("user[1]:*"))
	assert.Equal(t, `a\^b`, RedisPattern("a^b"))
}

func TestSQLLike(t *testing.T) {
	assert.Equal(t, "user:%", SQLLike("user:*"))
	assert.Equal(t, "user:_", SQLLike("user:?"))
	assert.Equal(t, `100\%:%`, SQLLike("100%:*"))
	assert.Equal(t, `a\_b:%`, SQLLike("a_b:*"))
	assert.Equal(t, `a\\b`, SQLLike(`a\b`))
}
