package main

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/Simplici0/costcalc/internal/estimate"
)

// tokenSigner carries a parsed model's volume between requests so a new
// material or MOQ can be priced without uploading the file again.
type tokenSigner struct {
	secret []byte
}

type geometryClaims struct {
	File   string  `json:"file"`
	Volume float64 `json:"volume"`
}

// newTokenSigner returns a signer keyed by secret, or by random bytes when
// secret is empty. generated reports the latter; such tokens die with the process.
func newTokenSigner(secret string) (signer *tokenSigner, generated bool, err error) {
	if secret != "" {
		return &tokenSigner{secret: []byte(secret)}, false, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate token secret: %w", err)
	}
	return &tokenSigner{secret: key}, true, nil
}

func (s *tokenSigner) sign(g estimate.Geometry) (string, error) {
	body, err := json.Marshal(geometryClaims{File: g.FileName, Volume: g.VolumeCM3})
	if err != nil {
		return "", fmt.Errorf("encode geometry token: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(body)
	return payload + "." + s.mac(payload), nil
}

func (s *tokenSigner) verify(value string) (estimate.Geometry, bool) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok || strings.Contains(signature, ".") {
		return estimate.Geometry{}, false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return estimate.Geometry{}, false
	}
	expected, _ := hex.DecodeString(s.mac(payload))
	if !hmac.Equal(provided, expected) {
		return estimate.Geometry{}, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return estimate.Geometry{}, false
	}
	var claims geometryClaims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return estimate.Geometry{}, false
	}
	if math.IsNaN(claims.Volume) || math.IsInf(claims.Volume, 0) {
		return estimate.Geometry{}, false
	}

	return estimate.Geometry{FileName: claims.File, VolumeCM3: claims.Volume}, true
}

func (s *tokenSigner) mac(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
