/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package x509tools

import (
	"crypto/sha1" //nolint:gosec // fingerprint, not a security boundary
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
)

// Certificate is a non-owning view over an already-parsed certificate.
// It never mutates or outlives the *x509.Certificate it wraps; callers
// keep the arena (the bag the certificate came from) alive for as long
// as any Certificate view is in use.
type Certificate struct {
	cert *x509.Certificate
}

// NewCertificate wraps a stdlib certificate in the reporting view used
// throughout the core.
func NewCertificate(cert *x509.Certificate) Certificate {
	return Certificate{cert: cert}
}

// Raw returns the underlying *x509.Certificate for code (chain building,
// signature verification) that needs more than the report view.
func (c Certificate) Raw() *x509.Certificate { return c.cert }

func (c Certificate) SubjectAttributes() DNAttributes { return ParseDN(c.cert.RawSubject) }
func (c Certificate) IssuerAttributes() DNAttributes  { return ParseDN(c.cert.RawIssuer) }
func (c Certificate) RawSubject() string              { return FormatPkixName(c.cert.RawSubject) }
func (c Certificate) RawIssuer() string               { return FormatPkixName(c.cert.RawIssuer) }

func (c Certificate) NotBefore() string { return FormatCertTime(c.cert.NotBefore) }
func (c Certificate) NotAfter() string  { return FormatCertTime(c.cert.NotAfter) }

// Serial returns the certificate serial number as lowercase hex with no
// separators, per the hex-encoding rule shared by every hex field this
// core emits.
func (c Certificate) Serial() string {
	return hexEncode(c.cert.SerialNumber.Bytes())
}

func (c Certificate) SignatureAlgorithm() string { return SigAlgName(c.cert.SignatureAlgorithm) }
func (c Certificate) PublicKeyAlgorithm() string { return PubKeyAlgName(c.cert.PublicKeyAlgorithm) }

// PublicKeyPEM renders the SubjectPublicKeyInfo as a PEM block.
func (c Certificate) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(c.cert.PublicKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// PEM renders the whole certificate.
func (c Certificate) PEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.cert.Raw}))
}

// Version returns the X.509 version field (1, 2 or 3).
func (c Certificate) Version() int { return c.cert.Version }

// FingerprintSHA1 is the lowercase hex SHA-1 digest of the full DER
// encoding (not just the TBSCertificate).
func (c Certificate) FingerprintSHA1() string {
	sum := sha1.Sum(c.cert.Raw) //nolint:gosec
	return hexEncode(sum[:])
}

// FingerprintSHA256 is the lowercase hex SHA-256 digest of the full DER
// encoding, used as the stable dedup key by getAllCertificates().
func (c Certificate) FingerprintSHA256() string {
	sum := sha256.Sum256(c.cert.Raw)
	return hexEncode(sum[:])
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

// Record is the fully-owned, serializable snapshot of a Certificate view
// produced by CreateCertificate; unlike Certificate it does not borrow
// from the certificate arena and can safely outlive the parse.
type Record struct {
	Subject            DNAttributes `json:"subject"`
	Issuer             DNAttributes `json:"issuer"`
	RawSubject         string       `json:"raw_subject"`
	RawIssuer          string       `json:"raw_issuer"`
	NotBefore          string       `json:"not_before"`
	NotAfter           string       `json:"not_after"`
	Serial             string       `json:"serial"`
	SignatureAlgorithm string       `json:"signature_algorithm"`
	PublicKeyAlgorithm string       `json:"public_key_algorithm"`
	PublicKeyPEM       string       `json:"public_key_pem,omitempty"`
	PEM                string       `json:"pem"`
	FingerprintSHA1    string       `json:"fingerprint_sha1"`
	FingerprintSHA256  string       `json:"fingerprint_sha256"`
	Version            int          `json:"version"`
}

// CreateCertificate snapshots every reporting field of a Certificate
// view into an owned Record.
func CreateCertificate(c Certificate) Record {
	pubPEM, _ := c.PublicKeyPEM()
	return Record{
		Subject:            c.SubjectAttributes(),
		Issuer:             c.IssuerAttributes(),
		RawSubject:         c.RawSubject(),
		RawIssuer:          c.RawIssuer(),
		NotBefore:          c.NotBefore(),
		NotAfter:           c.NotAfter(),
		Serial:             c.Serial(),
		SignatureAlgorithm: c.SignatureAlgorithm(),
		PublicKeyAlgorithm: c.PublicKeyAlgorithm(),
		PublicKeyPEM:       pubPEM,
		PEM:                c.PEM(),
		FingerprintSHA1:    c.FingerprintSHA1(),
		FingerprintSHA256:  c.FingerprintSHA256(),
		Version:            c.Version(),
	}
}
