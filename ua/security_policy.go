// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// SecurityPolicyURIs
const (
	SecurityPolicyURINone                = "http://opcfoundation.org/UA/SecurityPolicy#None"
	SecurityPolicyURIBasic128Rsa15       = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	SecurityPolicyURIBasic256            = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	SecurityPolicyURIBasic256Sha256      = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
	SecurityPolicyURIAes128Sha256RsaOaep = "http://opcfoundation.org/UA/SecurityPolicy#Aes128_Sha256_RsaOaep"
	SecurityPolicyURIAes256Sha256RsaPss  = "http://opcfoundation.org/UA/SecurityPolicy#Aes256_Sha256_RsaPss"
	SecurityPolicyURIBestAvailable       = ""
)

// SecurityPolicy is a mapping of PolicyURI to security settings
type SecurityPolicy interface {
	PolicyURI() string
	RSASign(priv *rsa.PrivateKey, plainText []byte) ([]byte, error)
	RSAVerify(pub *rsa.PublicKey, plainText, signature []byte) error
	RSAEncrypt(pub *rsa.PublicKey, plainText []byte) ([]byte, error)
	RSADecrypt(priv *rsa.PrivateKey, cipherText []byte) ([]byte, error)
	SymHMACFactory(key []byte) hash.Hash
	RSAPaddingSize() int
	SymSignatureSize() int
	SymSignatureKeySize() int
	SymEncryptionBlockSize() int
	SymEncryptionKeySize() int
	NonceSize() int
	RSASignatureURI() string
	RSAKeyWrapURI() string
}

// rsaSigner signs and verifies with one hash and padding scheme.
type rsaSigner struct {
	hash crypto.Hash
	pss  bool
}

func (s rsaSigner) digest(plainText []byte) []byte {
	if s.hash == crypto.SHA1 {
		h := sha1.Sum(plainText)
		return h[:]
	}
	h := sha256.Sum256(plainText)
	return h[:]
}

func (s rsaSigner) sign(priv *rsa.PrivateKey, plainText []byte) ([]byte, error) {
	if s.pss {
		return rsa.SignPSS(rand.Reader, priv, s.hash, s.digest(plainText), &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: s.hash})
	}
	return rsa.SignPKCS1v15(rand.Reader, priv, s.hash, s.digest(plainText))
}

func (s rsaSigner) verify(pub *rsa.PublicKey, plainText, signature []byte) error {
	if s.pss {
		return rsa.VerifyPSS(pub, s.hash, s.digest(plainText), signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: s.hash})
	}
	return rsa.VerifyPKCS1v15(pub, s.hash, s.digest(plainText), signature)
}

// rsaCipher encrypts with PKCS#1 v1.5 when oaep is nil, otherwise with OAEP.
type rsaCipher struct {
	oaep func() hash.Hash
}

func (c rsaCipher) encrypt(pub *rsa.PublicKey, plainText []byte) ([]byte, error) {
	if c.oaep == nil {
		return rsa.EncryptPKCS1v15(rand.Reader, pub, plainText)
	}
	return rsa.EncryptOAEP(c.oaep(), rand.Reader, pub, plainText, []byte{})
}

func (c rsaCipher) decrypt(priv *rsa.PrivateKey, cipherText []byte) ([]byte, error) {
	if c.oaep == nil {
		return rsa.DecryptPKCS1v15(rand.Reader, priv, cipherText)
	}
	return rsa.DecryptOAEP(c.oaep(), rand.Reader, priv, cipherText, []byte{})
}

// securityPolicy holds the algorithms and sizes of one policy.
type securityPolicy struct {
	uri          string
	signer       rsaSigner
	cipher       rsaCipher
	hmacHash     func() hash.Hash
	rsaPadding   int
	sigSize      int
	sigKeySize   int
	blockSize    int
	encKeySize   int
	nonceSize    int
	signatureURI string
	keyWrapURI   string
	secure       bool
}

func (p *securityPolicy) PolicyURI() string { return p.uri }

func (p *securityPolicy) RSASign(priv *rsa.PrivateKey, plainText []byte) ([]byte, error) {
	if !p.secure {
		return nil, BadSecurityPolicyRejected
	}
	return p.signer.sign(priv, plainText)
}

func (p *securityPolicy) RSAVerify(pub *rsa.PublicKey, plainText, signature []byte) error {
	if !p.secure {
		return BadSecurityPolicyRejected
	}
	return p.signer.verify(pub, plainText, signature)
}

func (p *securityPolicy) RSAEncrypt(pub *rsa.PublicKey, plainText []byte) ([]byte, error) {
	if !p.secure {
		return nil, BadSecurityPolicyRejected
	}
	return p.cipher.encrypt(pub, plainText)
}

func (p *securityPolicy) RSADecrypt(priv *rsa.PrivateKey, cipherText []byte) ([]byte, error) {
	if !p.secure {
		return nil, BadSecurityPolicyRejected
	}
	return p.cipher.decrypt(priv, cipherText)
}

// SymHMACFactory returns nil for the None policy.
func (p *securityPolicy) SymHMACFactory(key []byte) hash.Hash {
	if !p.secure {
		return nil
	}
	return hmac.New(p.hmacHash, key)
}

func (p *securityPolicy) RSAPaddingSize() int         { return p.rsaPadding }
func (p *securityPolicy) SymSignatureSize() int       { return p.sigSize }
func (p *securityPolicy) SymSignatureKeySize() int    { return p.sigKeySize }
func (p *securityPolicy) SymEncryptionBlockSize() int { return p.blockSize }
func (p *securityPolicy) SymEncryptionKeySize() int   { return p.encKeySize }
func (p *securityPolicy) NonceSize() int              { return p.nonceSize }
func (p *securityPolicy) RSASignatureURI() string     { return p.signatureURI }
func (p *securityPolicy) RSAKeyWrapURI() string       { return p.keyWrapURI }

var securityPolicies = map[string]*securityPolicy{
	SecurityPolicyURINone: {
		uri:       SecurityPolicyURINone,
		blockSize: 1,
	},
	SecurityPolicyURIBasic128Rsa15: {
		uri:          SecurityPolicyURIBasic128Rsa15,
		signer:       rsaSigner{hash: crypto.SHA1},
		cipher:       rsaCipher{},
		hmacHash:     sha1.New,
		rsaPadding:   11,
		sigSize:      20,
		sigKeySize:   16,
		blockSize:    16,
		encKeySize:   16,
		nonceSize:    16,
		signatureURI: RsaSha1Signature,
		keyWrapURI:   RsaV15KeyWrap,
		secure:       true,
	},
	SecurityPolicyURIBasic256: {
		uri:          SecurityPolicyURIBasic256,
		signer:       rsaSigner{hash: crypto.SHA1},
		cipher:       rsaCipher{oaep: sha1.New},
		hmacHash:     sha1.New,
		rsaPadding:   42,
		sigSize:      20,
		sigKeySize:   24,
		blockSize:    16,
		encKeySize:   32,
		nonceSize:    32,
		signatureURI: RsaSha1Signature,
		keyWrapURI:   RsaOaepKeyWrap,
		secure:       true,
	},
	SecurityPolicyURIBasic256Sha256: {
		uri:          SecurityPolicyURIBasic256Sha256,
		signer:       rsaSigner{hash: crypto.SHA256},
		cipher:       rsaCipher{oaep: sha1.New},
		hmacHash:     sha256.New,
		rsaPadding:   42,
		sigSize:      32,
		sigKeySize:   32,
		blockSize:    16,
		encKeySize:   32,
		nonceSize:    32,
		signatureURI: RsaSha256Signature,
		keyWrapURI:   RsaOaepKeyWrap,
		secure:       true,
	},
	SecurityPolicyURIAes128Sha256RsaOaep: {
		uri:          SecurityPolicyURIAes128Sha256RsaOaep,
		signer:       rsaSigner{hash: crypto.SHA256},
		cipher:       rsaCipher{oaep: sha1.New},
		hmacHash:     sha256.New,
		rsaPadding:   42,
		sigSize:      32,
		sigKeySize:   32,
		blockSize:    16,
		encKeySize:   16,
		nonceSize:    32,
		signatureURI: RsaSha256Signature,
		keyWrapURI:   RsaOaepKeyWrap,
		secure:       true,
	},
	SecurityPolicyURIAes256Sha256RsaPss: {
		uri:          SecurityPolicyURIAes256Sha256RsaPss,
		signer:       rsaSigner{hash: crypto.SHA256, pss: true},
		cipher:       rsaCipher{oaep: sha256.New},
		hmacHash:     sha256.New,
		rsaPadding:   66,
		sigSize:      32,
		sigKeySize:   32,
		blockSize:    16,
		encKeySize:   32,
		nonceSize:    32,
		signatureURI: RsaPssSha256Signature,
		keyWrapURI:   RsaOaepSha256KeyWrap,
		secure:       true,
	},
}

// NewSecurityPolicy returns the policy for the given uri, or BadSecurityPolicyRejected.
func NewSecurityPolicy(uri string) (SecurityPolicy, error) {
	if p, ok := securityPolicies[uri]; ok {
		return p, nil
	}
	return nil, BadSecurityPolicyRejected
}

// IsSecure returns true if the policy signs or encrypts messages.
func IsSecure(policy SecurityPolicy) bool {
	return policy != nil && policy.PolicyURI() != SecurityPolicyURINone
}

// SecurityPolicyRank orders policies from weakest to strongest. Unknown policies rank -1.
func SecurityPolicyRank(uri string) int {
	switch uri {
	case SecurityPolicyURINone:
		return 0
	case SecurityPolicyURIBasic128Rsa15:
		return 1
	case SecurityPolicyURIBasic256:
		return 2
	case SecurityPolicyURIBasic256Sha256:
		return 4
	case SecurityPolicyURIAes128Sha256RsaOaep:
		return 3
	case SecurityPolicyURIAes256Sha256RsaPss:
		return 5
	default:
		return -1
	}
}
