// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/awcullen/uastack/ua"
	"gotest.tools/assert"
)

func TestSecurityPolicyParameters(t *testing.T) {
	cases := []struct {
		uri                                    string
		sig, sigKey, block, encKey, nonce, pad int
	}{
		{ua.SecurityPolicyURINone, 0, 0, 1, 0, 0, 0},
		{ua.SecurityPolicyURIBasic128Rsa15, 20, 16, 16, 16, 16, 11},
		{ua.SecurityPolicyURIBasic256, 20, 24, 16, 32, 32, 42},
		{ua.SecurityPolicyURIBasic256Sha256, 32, 32, 16, 32, 32, 42},
		{ua.SecurityPolicyURIAes128Sha256RsaOaep, 32, 32, 16, 16, 32, 42},
		{ua.SecurityPolicyURIAes256Sha256RsaPss, 32, 32, 16, 32, 32, 66},
	}
	for _, c := range cases {
		p, err := ua.NewSecurityPolicy(c.uri)
		assert.NilError(t, err)
		assert.Equal(t, p.PolicyURI(), c.uri)
		assert.Equal(t, p.SymSignatureSize(), c.sig)
		assert.Equal(t, p.SymSignatureKeySize(), c.sigKey)
		assert.Equal(t, p.SymEncryptionBlockSize(), c.block)
		assert.Equal(t, p.SymEncryptionKeySize(), c.encKey)
		assert.Equal(t, p.NonceSize(), c.nonce)
		assert.Equal(t, p.RSAPaddingSize(), c.pad)
	}
}

func TestSecurityPolicyUnknown(t *testing.T) {
	_, err := ua.NewSecurityPolicy("http://opcfoundation.org/UA/SecurityPolicy#Bogus")
	assert.Equal(t, err, ua.BadSecurityPolicyRejected)
}

func TestSecurityPolicyNoneRejectsAsymmetric(t *testing.T) {
	p, _ := ua.NewSecurityPolicy(ua.SecurityPolicyURINone)
	_, err := p.RSASign(nil, []byte("x"))
	assert.Equal(t, err, ua.BadSecurityPolicyRejected)
	_, err = p.RSAEncrypt(nil, []byte("x"))
	assert.Equal(t, err, ua.BadSecurityPolicyRejected)
	assert.Assert(t, p.SymHMACFactory([]byte("k")) == nil)
}

func TestSecurityPolicySignEncrypt(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.NilError(t, err)
	plain := []byte("the quick brown fox")
	for _, uri := range []string{
		ua.SecurityPolicyURIBasic128Rsa15,
		ua.SecurityPolicyURIBasic256,
		ua.SecurityPolicyURIBasic256Sha256,
		ua.SecurityPolicyURIAes128Sha256RsaOaep,
		ua.SecurityPolicyURIAes256Sha256RsaPss,
	} {
		t.Run(uri, func(t *testing.T) {
			p, _ := ua.NewSecurityPolicy(uri)
			sig, err := p.RSASign(key, plain)
			assert.NilError(t, err)
			assert.Equal(t, len(sig), key.PublicKey.Size())
			assert.NilError(t, p.RSAVerify(&key.PublicKey, plain, sig))
			assert.Assert(t, p.RSAVerify(&key.PublicKey, []byte("tampered"), sig) != nil)

			cipherText, err := p.RSAEncrypt(&key.PublicKey, plain)
			assert.NilError(t, err)
			assert.Equal(t, len(cipherText), key.PublicKey.Size())
			out, err := p.RSADecrypt(key, cipherText)
			assert.NilError(t, err)
			assert.DeepEqual(t, out, plain)

			// the largest plain block fits one cipher block.
			block := bytes.Repeat([]byte{0x5a}, key.PublicKey.Size()-p.RSAPaddingSize())
			_, err = p.RSAEncrypt(&key.PublicKey, block)
			assert.NilError(t, err)
		})
	}
}

func TestCalculatePSHA(t *testing.T) {
	secret := []byte("secret-nonce-0123456789abcdefgh")
	seed := []byte("seed-nonce-0123456789abcdefghijk")
	a := ua.CalculatePSHA(secret, seed, 80, ua.SecurityPolicyURIBasic256Sha256)
	b := ua.CalculatePSHA(secret, seed, 80, ua.SecurityPolicyURIBasic256Sha256)
	assert.Equal(t, len(a), 80)
	assert.DeepEqual(t, a, b)

	// a shorter output is a prefix of the longer one.
	c := ua.CalculatePSHA(secret, seed, 33, ua.SecurityPolicyURIBasic256Sha256)
	assert.DeepEqual(t, c, a[:33])

	// SHA-1 policies derive different material.
	d := ua.CalculatePSHA(secret, seed, 80, ua.SecurityPolicyURIBasic256)
	assert.Assert(t, !bytes.Equal(a, d))

	// swapping secret and seed derives the other direction.
	e := ua.CalculatePSHA(seed, secret, 80, ua.SecurityPolicyURIBasic256Sha256)
	assert.Assert(t, !bytes.Equal(a, e))
}

func TestRandomNonceAndThumbprint(t *testing.T) {
	n1, err := ua.RandomNonce(32)
	assert.NilError(t, err)
	n2, _ := ua.RandomNonce(32)
	assert.Equal(t, len(n1), 32)
	assert.Assert(t, !bytes.Equal(n1, n2))
	assert.Equal(t, len(ua.Thumbprint([]byte("cert"))), 20)
	assert.Assert(t, ua.Thumbprint(nil) == nil)
}

func TestCertificateProvider(t *testing.T) {
	cert, key, err := ua.CreateSelfSignedCertificate("test")
	assert.NilError(t, err)
	dir := t.TempDir()
	certFile, keyFile := dir+"/test.crt", dir+"/test.key"
	assert.NilError(t, ua.WriteCertificateFiles(cert, key, certFile, keyFile))

	cp, err := ua.LoadCertificateProvider(certFile, keyFile)
	assert.NilError(t, err)
	assert.DeepEqual(t, cp.Certificate(), cert)
	assert.Equal(t, cp.PublicKeySize(), 256)

	p, _ := ua.NewSecurityPolicy(ua.SecurityPolicyURIBasic256Sha256)
	pub, err := ua.PublicKeyOf(cp.Certificate())
	assert.NilError(t, err)
	sig, err := cp.Sign(p, []byte("data"))
	assert.NilError(t, err)
	assert.NilError(t, p.RSAVerify(pub, []byte("data"), sig))

	cipherText, err := p.RSAEncrypt(pub, []byte("secret"))
	assert.NilError(t, err)
	plain, err := cp.Decrypt(p, cipherText)
	assert.NilError(t, err)
	assert.DeepEqual(t, plain, []byte("secret"))

	assert.Assert(t, ua.ApplicationURIOf(cert) != "")
}

func TestValidateCertificate(t *testing.T) {
	cert, key, err := ua.CreateSelfSignedCertificate("peer")
	assert.NilError(t, err)
	usage := x509.ExtKeyUsageServerAuth

	// untrusted
	err = ua.ValidateCertificate(cert, usage, ua.CertificateValidationOptions{SuppressHostName: true})
	assert.Equal(t, err, ua.BadCertificateChainIncomplete)

	// trusted by file
	dir := t.TempDir()
	assert.NilError(t, ua.WriteCertificateFiles(cert, key, dir+"/peer.crt", dir+"/peer.key"))
	err = ua.ValidateCertificate(cert, usage, ua.CertificateValidationOptions{TrustedPaths: []string{dir + "/peer.crt"}, Hostname: "localhost"})
	assert.NilError(t, err)

	// wrong host name
	err = ua.ValidateCertificate(cert, usage, ua.CertificateValidationOptions{TrustedPaths: []string{dir + "/peer.crt"}, Hostname: "example.invalid"})
	assert.Equal(t, err, ua.BadCertificateHostNameInvalid)

	// garbage
	err = ua.ValidateCertificate([]byte("garbage"), usage, ua.CertificateValidationOptions{})
	assert.Equal(t, err, ua.BadCertificateInvalid)
}
