package main

import (
	"math"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/costcalc/internal/estimate"
)

func mustSign(t *testing.T, s *tokenSigner, g estimate.Geometry) string {
	t.Helper()
	token, err := s.sign(g)
	require.NoError(t, err)
	return token
}

func TestTokenRoundTrip(t *testing.T) {
	signer, generated, err := newTokenSigner("test-secret")
	require.NoError(t, err)
	assert.False(t, generated)

	faker := gofakeit.New(3)
	for i := 0; i < 10; i++ {
		g := estimate.Geometry{
			FileName:  faker.Word() + ".stp",
			VolumeCM3: faker.Float64Range(0, 1e6),
		}
		got, ok := signer.verify(mustSign(t, signer, g))
		require.True(t, ok)
		assert.Equal(t, g, got)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	signer, _, err := newTokenSigner("test-secret")
	require.NoError(t, err)
	token := mustSign(t, signer, estimate.Geometry{FileName: "part.stp", VolumeCM3: 12.5})
	payload, signature, _ := strings.Cut(token, ".")

	forged, _, _ := newTokenSigner("other-secret")
	cheaper := mustSign(t, forged, estimate.Geometry{FileName: "part.stp", VolumeCM3: 0.1})
	forgedPayload, _, _ := strings.Cut(cheaper, ".")

	for name, value := range map[string]string{
		"empty":           "",
		"no signature":    payload,
		"bad hex":         payload + ".zz",
		"swapped payload": forgedPayload + "." + signature,
		"other secret":    cheaper,
		"extra segment":   token + ".00",
	} {
		_, ok := signer.verify(value)
		assert.False(t, ok, name)
	}
}

func TestGeneratedSecretsDiffer(t *testing.T) {
	a, generated, err := newTokenSigner("")
	require.NoError(t, err)
	assert.True(t, generated)
	b, _, err := newTokenSigner("")
	require.NoError(t, err)

	_, ok := b.verify(mustSign(t, a, estimate.Geometry{FileName: "x.stp", VolumeCM3: 1}))
	assert.False(t, ok)
}

func TestTokenRefusesNonFiniteVolume(t *testing.T) {
	signer, _, err := newTokenSigner("test-secret")
	require.NoError(t, err)

	for _, v := range []float64{math.Inf(1), math.NaN()} {
		token, err := signer.sign(estimate.Geometry{FileName: "part.stp", VolumeCM3: v})
		assert.Error(t, err)
		assert.Empty(t, token)
	}
}
