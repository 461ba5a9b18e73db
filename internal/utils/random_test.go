package utils

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomPassword(t *testing.T) {
	seen := make(map[string]bool)
	used := make(map[rune]bool)
	for i := 0; i < 500; i++ {
		pw := GenerateRandomPassword(12)
		require.Len(t, pw, 12)
		for _, r := range pw {
			require.True(t, strings.ContainsRune(PasswordCharset, r), "字符 %q 不在字符集中", r)
			used[r] = true
		}
		assert.False(t, seen[pw], "重复的密码 %s", pw)
		seen[pw] = true
	}
	// 6000 个字符足以覆盖整个字符集
	assert.Len(t, used, len(PasswordCharset))
}

func TestGenerateRandomOTP(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 100; i++ {
		assert.Regexp(t, pattern, GenerateRandomOTP())
	}
}

func TestSecureIntNRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n := secureIntN(3)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 3)
	}
}
