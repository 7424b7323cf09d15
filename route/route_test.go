package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectSingleServerAlwaysZero(t *testing.T) {
	for _, key := range []string{"a", "b", "user:1234", ""} {
		assert.Equal(t, 0, Select(key, 1))
	}
}

func TestSelectIsStableForSameKeyAndBucketCount(t *testing.T) {
	a := Select("user:42", 5)
	b := Select("user:42", 5)
	assert.Equal(t, a, b)
}

func TestSelectStaysInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		idx := Select(string(rune('a'+i%26))+string(rune(i)), 7)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 7)
	}
}

func TestSelectZeroBucketsIsZero(t *testing.T) {
	assert.Equal(t, 0, Select("x", 0))
}
