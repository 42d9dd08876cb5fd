// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// CalculatePSHA calculates the pseudo random function P_SHA of the policy.
func CalculatePSHA(secret, seed []byte, sizeBytes int, securityPolicyURI string) []byte {
	var mac hash.Hash
	switch securityPolicyURI {
	case SecurityPolicyURIBasic128Rsa15, SecurityPolicyURIBasic256:
		mac = hmac.New(sha1.New, secret)
	default:
		mac = hmac.New(sha256.New, secret)
	}
	output := make([]byte, 0, sizeBytes+mac.Size())
	a := seed
	for len(output) < sizeBytes {
		mac.Reset()
		mac.Write(a)
		a = mac.Sum(nil)
		mac.Reset()
		mac.Write(a)
		mac.Write(seed)
		output = mac.Sum(output)
	}
	return output[:sizeBytes]
}

// RandomNonce returns n bytes from a cryptographically secure source.
func RandomNonce(n int) ([]byte, error) {
	nonce := make([]byte, n)
	if _, err := rand.Read(nonce); err != nil {
		return nil, BadNonceInvalid
	}
	return nonce, nil
}

// Thumbprint returns the SHA-1 hash of the certificate. It returns nil for an empty certificate.
func Thumbprint(cert []byte) []byte {
	if len(cert) == 0 {
		return nil
	}
	h := sha1.Sum(cert)
	return h[:]
}
