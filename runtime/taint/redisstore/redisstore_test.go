package redisstore

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/taint"
)

func TestNewDefaultsKeyPrefix(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{}), "")
	require.Equal(t, keyPrefix, s.prefix)
	require.Equal(t, keyPrefix+"tags:step-1", s.tagsKey("step-1"))
	require.Equal(t, keyPrefix+"sinks", s.sinksKey())
}

func TestNewHonorsCustomPrefix(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{}), "tenant-a:")
	require.Equal(t, "tenant-a:", s.prefix)
	require.Equal(t, "tenant-a:value:abc", s.valueKey("abc"))
}

func TestHashValueSkipsNilAndStrings(t *testing.T) {
	_, ok := hashValue(nil)
	require.False(t, ok)

	_, ok = hashValue("a string")
	require.False(t, ok)

	hash, ok := hashValue(map[string]any{"a": 1})
	require.True(t, ok)
	require.NotEmpty(t, hash)
}

func TestHashValueIsStableForEquivalentMaps(t *testing.T) {
	a, _ := hashValue(map[string]any{"a": 1, "b": 2})
	b, _ := hashValue(map[string]any{"b": 2, "a": 1})
	require.Equal(t, a, b)
}

func TestBumpTagsIncrementsPropagationDepth(t *testing.T) {
	in := []taint.TaintTag{{Sensitivity: taint.SensitivityPII, PropagationDepth: 0}}
	out := bumpTags(in)
	require.Equal(t, 1, out[0].PropagationDepth)
	require.Equal(t, 0, in[0].PropagationDepth)
}

func TestAtoi(t *testing.T) {
	require.Equal(t, 42, atoi("42"))
	require.Equal(t, 0, atoi("not-a-number"))
	require.Equal(t, 0, atoi(""))
}
