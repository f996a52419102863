package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeKeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1, "c": map[string]interface{}{"y": 1, "x": 2}}
	b := map[string]interface{}{"c": map[string]interface{}{"x": 2, "y": 1}, "a": 1, "b": 2}

	outA, err := Canonicalize(a)
	require.NoError(t, err)
	outB, err := Canonicalize(b)
	require.NoError(t, err)
	require.Equal(t, string(outA), string(outB))
	require.Equal(t, `{"a":1,"b":2,"c":{"x":2,"y":1}}`, string(outA))
}

func TestCanonicalizeIntegerForm(t *testing.T) {
	out, err := Canonicalize(map[string]interface{}{"n": int64(1000)})
	require.NoError(t, err)
	require.Equal(t, `{"n":1000}`, string(out))
}

func TestCanonicalizeRejectsFloat(t *testing.T) {
	_, err := Canonicalize(map[string]interface{}{"n": 1.5})
	require.Error(t, err)
}

func TestComputeHashDeterministic(t *testing.T) {
	type payload struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	h1, err := ComputeHash(payload{B: 2, A: "x"})
	require.NoError(t, err)
	h2, err := ComputeHash(payload{B: 2, A: "x"})
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.True(t, h1.Valid())
}
