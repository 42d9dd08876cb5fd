// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CertificateProvider holds the local application instance certificate and performs the
// private key operations of a security policy. The private key never leaves the provider.
type CertificateProvider interface {
	// Certificate returns the DER encoded certificate.
	Certificate() []byte
	// PublicKeySize returns the size of the key in bytes.
	PublicKeySize() int
	// Sign signs the data with the asymmetric algorithm of the policy.
	Sign(policy SecurityPolicy, data []byte) ([]byte, error)
	// Decrypt decrypts one block with the asymmetric algorithm of the policy.
	Decrypt(policy SecurityPolicy, data []byte) ([]byte, error)
}

type rsaCertificateProvider struct {
	cert []byte
	key  *rsa.PrivateKey
}

// NewRSACertificateProvider returns a CertificateProvider for a DER encoded certificate and its RSA key.
func NewRSACertificateProvider(cert []byte, key *rsa.PrivateKey) CertificateProvider {
	return &rsaCertificateProvider{cert: cert, key: key}
}

func (p *rsaCertificateProvider) Certificate() []byte { return p.cert }

func (p *rsaCertificateProvider) PublicKeySize() int {
	if p.key == nil {
		return 0
	}
	return p.key.PublicKey.Size()
}

func (p *rsaCertificateProvider) Sign(policy SecurityPolicy, data []byte) ([]byte, error) {
	if p.key == nil {
		return nil, BadSecurityChecksFailed
	}
	return policy.RSASign(p.key, data)
}

func (p *rsaCertificateProvider) Decrypt(policy SecurityPolicy, data []byte) ([]byte, error) {
	if p.key == nil {
		return nil, BadSecurityChecksFailed
	}
	return policy.RSADecrypt(p.key, data)
}

// LoadCertificateProvider reads a certificate and RSA private key from PEM or DER files.
func LoadCertificateProvider(certFile, keyFile string) (CertificateProvider, error) {
	cert, key, err := ReadCertificateFiles(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return NewRSACertificateProvider(cert.Raw, key), nil
}

// ReadCertificateFiles reads the certificate and private key from files.
func ReadCertificateFiles(certFile, keyFile string) (*x509.Certificate, *rsa.PrivateKey, error) {
	buf, err := os.ReadFile(certFile)
	if err != nil {
		return nil, nil, errors.Wrapf(BadCertificateInvalid, "read %s", certFile)
	}
	certs := parseCertificates(buf)
	if len(certs) == 0 {
		return nil, nil, errors.Wrapf(BadCertificateInvalid, "parse %s", certFile)
	}
	buf, err = os.ReadFile(keyFile)
	if err != nil {
		return nil, nil, errors.Wrapf(BadCertificateInvalid, "read %s", keyFile)
	}
	key := parsePrivateKey(buf)
	if key == nil {
		return nil, nil, errors.Wrapf(BadCertificateInvalid, "parse %s", keyFile)
	}
	return certs[0], key, nil
}

// parseCertificates returns the certificates of a PEM bundle or a single DER certificate.
func parseCertificates(buf []byte) []*x509.Certificate {
	var certs []*x509.Certificate
	for len(buf) > 0 {
		var block *pem.Block
		block, buf = pem.Decode(buf)
		if block == nil {
			// maybe its der
			if cert, err := x509.ParseCertificate(buf); err == nil {
				certs = append(certs, cert)
			}
			break
		}
		if block.Type != "CERTIFICATE" || len(block.Headers) != 0 {
			continue
		}
		if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
			certs = append(certs, cert)
		}
	}
	return certs
}

func parsePrivateKey(buf []byte) *rsa.PrivateKey {
	der := buf
	if block, _ := pem.Decode(buf); block != nil {
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			return nil
		}
		der = block.Bytes
	}
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k
	}
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if k2, ok := k.(*rsa.PrivateKey); ok {
			return k2
		}
	}
	return nil
}

// loadCertPools reads trusted certificates from files or directories. Self-signed
// certificates are roots, the others intermediates.
func loadCertPools(paths []string) (roots, intermediates *x509.CertPool) {
	add := func(cert *x509.Certificate) {
		if bytes.Equal(cert.RawIssuer, cert.RawSubject) {
			if roots == nil {
				roots = x509.NewCertPool()
			}
			roots.AddCert(cert)
			return
		}
		if intermediates == nil {
			intermediates = x509.NewCertPool()
		}
		intermediates.AddCert(cert)
	}
	for _, path := range paths {
		files := []string{path}
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			files, _ = filepath.Glob(filepath.Join(path, "*"))
		}
		for _, file := range files {
			buf, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			for _, cert := range parseCertificates(buf) {
				add(cert)
			}
		}
	}
	return roots, intermediates
}

// CertificateValidationOptions suppress individual certificate checks.
type CertificateValidationOptions struct {
	TrustedPaths         []string
	Hostname             string
	SuppressHostName     bool
	SuppressTimeInvalid  bool
	SuppressChainInvalid bool
}

// ValidateCertificate verifies the DER encoded certificate of a peer and maps the failure to a StatusCode.
func ValidateCertificate(der []byte, usage x509.ExtKeyUsage, opts CertificateValidationOptions) error {
	certificate, err := x509.ParseCertificate(der)
	if err != nil {
		return BadCertificateInvalid
	}
	roots, intermediates := loadCertPools(opts.TrustedPaths)
	vo := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{usage},
	}
	if !opts.SuppressHostName {
		vo.DNSName = opts.Hostname
	}
	if opts.SuppressTimeInvalid {
		vo.CurrentTime = certificate.NotBefore
	}
	if opts.SuppressChainInvalid {
		if vo.Roots == nil {
			vo.Roots = x509.NewCertPool()
		}
		vo.Roots.AddCert(certificate)
	}
	if vo.Roots == nil {
		vo.Roots = x509.NewCertPool()
	}

	// build chain and verify
	if _, err := certificate.Verify(vo); err != nil {
		switch se := err.(type) {
		case x509.CertificateInvalidError:
			switch se.Reason {
			case x509.Expired:
				return BadCertificateTimeInvalid
			case x509.IncompatibleUsage:
				return BadCertificateUseNotAllowed
			default:
				return BadSecurityChecksFailed
			}
		case x509.HostnameError:
			return BadCertificateHostNameInvalid
		case x509.UnknownAuthorityError:
			return BadCertificateChainIncomplete
		default:
			return BadSecurityChecksFailed
		}
	}
	return nil
}

// PublicKeyOf returns the RSA public key of a DER encoded certificate.
func PublicKeyOf(der []byte) (*rsa.PublicKey, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, BadCertificateInvalid
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, BadCertificateInvalid
	}
	return pub, nil
}

// ApplicationURIOf returns the first uri of the subject alternative names.
func ApplicationURIOf(der []byte) string {
	cert, err := x509.ParseCertificate(der)
	if err != nil || len(cert.URIs) == 0 {
		return ""
	}
	return cert.URIs[0].String()
}

// CreateSelfSignedCertificate creates a 2048 bit RSA key and a self-signed application instance
// certificate valid for the local host.
func CreateSelfSignedCertificate(appName string) ([]byte, *rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, BadCertificateInvalid
	}
	host, _ := os.Hostname()
	applicationURI, _ := url.Parse(fmt.Sprintf("urn:%s:%s", host, appName))
	serialNumber, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	subjectKeyHash := sha1.New()
	subjectKeyHash.Write(key.PublicKey.N.Bytes())
	subjectKeyID := subjectKeyHash.Sum(nil)
	oidDC := asn1.ObjectIdentifier([]int{0, 9, 2342, 19200300, 100, 1, 25})

	template := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: appName, ExtraNames: []pkix.AttributeTypeAndValue{{Type: oidDC, Value: host}}},
		SubjectKeyId:          subjectKeyID,
		AuthorityKeyId:        subjectKeyID,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment | x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{host, "localhost"},
		IPAddresses:           []net.IP{[]byte{127, 0, 0, 1}},
		URIs:                  []*url.URL{applicationURI},
	}
	raw, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, BadCertificateInvalid
	}
	return raw, key, nil
}

// WriteCertificateFiles writes the certificate and key as PEM files.
func WriteCertificateFiles(cert []byte, key *rsa.PrivateKey, certFile, keyFile string) error {
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert}), 0644); err != nil {
		return errors.Wrap(err, "write certificate")
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0600); err != nil {
		return errors.Wrap(err, "write key")
	}
	return nil
}
