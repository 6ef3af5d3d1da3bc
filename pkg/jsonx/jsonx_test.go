package jsonx

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazy(t *testing.T) {
	v := map[string]any{"auctionId": "a-1"}

	assert.Equal(t, `{"auctionId":"a-1"}`, fmt.Sprint(LzJSON(v)))
	assert.Equal(t, "{\n \"auctionId\": \"a-1\"\n}", fmt.Sprint(LzPretty(v)))
}

func TestDecode(t *testing.T) {
	out := map[string]any{}
	require.NoError(t, Decode(JSON(map[string]int{"n": 1}), &out))
	assert.Equal(t, float64(1), out["n"])
	assert.Error(t, Decode([]byte("{"), &out))
}
