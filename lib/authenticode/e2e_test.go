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

package authenticode

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/authenticode-verify/lib/pkcs7"
	"github.com/sassoftware/authenticode-verify/lib/pkcs9"
	"github.com/sassoftware/authenticode-verify/lib/x509tools"
)

// The tests in this file build genuine top-level PKCS#7 DER blobs and run
// them through Parse end to end, unlike TestChecklist* in signature_test.go, which drive
// the checklist functions against a hand-assembled Pkcs7Signature. These
// exercise the shapes real Authenticode signers emit: a legacy PKCS#9
// counter-signature, a Microsoft RFC 3161 timestamp, and a nested
// signature.

func buildRawCertificates(t *testing.T, certs ...*x509.Certificate) pkcs7.RawCertificates {
	t.Helper()
	var buf []byte
	for _, c := range certs {
		buf = append(buf, c.Raw...)
	}
	val := asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: buf}
	der, err := asn1.Marshal(val)
	require.NoError(t, err)
	return pkcs7.RawCertificates{Raw: der}
}

// buildIndirectContent returns the SpcIndirectDataContent ContentInfo a
// real signer would produce over fileDigest, plus the SHA-256 digest of
// its DER encoding (what the messageDigest authenticated attribute must
// carry).
func buildIndirectContent(t *testing.T, fileDigest []byte) (pkcs7.ContentInfo, []byte) {
	t.Helper()
	digestAlg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)
	spc := SpcIndirectDataContent{
		Data:          SpcAttributeTypeAndOptionalValue{Type: asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 15}},
		MessageDigest: DigestInfo{DigestAlgorithm: digestAlg, Digest: fileDigest},
	}
	ci, err := pkcs7.NewContentInfo(OidSpcIndirectDataContent, spc)
	require.NoError(t, err)
	ciBytes, err := ci.Bytes()
	require.NoError(t, err)
	sum := sha256.Sum256(ciBytes)
	return ci, sum[:]
}

func buildPrimarySignerInfo(t *testing.T, key *rsa.PrivateKey, cert *x509.Certificate, contentDigest []byte, unauth pkcs7.AttributeList) pkcs7.SignerInfo {
	t.Helper()
	digestAlg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)

	var attrs pkcs7.AttributeList
	require.NoError(t, attrs.Add(pkcs7.OidAttributeContentType, OidSpcIndirectDataContent))
	require.NoError(t, attrs.Add(pkcs7.OidAttributeMessageDigest, contentDigest))
	attrBytes, err := attrs.Bytes()
	require.NoError(t, err)
	hash := sha256.Sum256(attrBytes)
	encSig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	require.NoError(t, err)

	return pkcs7.SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: pkcs7.IssuerAndSerial{
			IssuerName:   asn1.RawValue{FullBytes: cert.RawIssuer},
			SerialNumber: cert.SerialNumber,
		},
		DigestAlgorithm:           digestAlg,
		AuthenticatedAttributes:   attrs,
		DigestEncryptionAlgorithm: pkix.AlgorithmIdentifier{Algorithm: x509tools.OidPublicKeyRSA},
		EncryptedDigest:           encSig,
		UnauthenticatedAttributes: unauth,
	}
}

func buildOuterDER(t *testing.T, ci pkcs7.ContentInfo, certs pkcs7.RawCertificates, si pkcs7.SignerInfo) []byte {
	t.Helper()
	digestAlg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)
	sd := pkcs7.SignedData{
		Version:                    1,
		DigestAlgorithmIdentifiers: []pkix.AlgorithmIdentifier{digestAlg},
		ContentInfo:                ci,
		Certificates:               certs,
		SignerInfos:                []pkcs7.SignerInfo{si},
	}
	psd := pkcs7.ContentInfoSignedData{ContentType: pkcs7.OidSignedData, Content: sd}
	der, err := asn1.Marshal(psd)
	require.NoError(t, err)
	return der
}

func signAttrsRSA(t *testing.T, key *rsa.PrivateKey, attrs pkcs7.AttributeList) []byte {
	t.Helper()
	attrBytes, err := attrs.Bytes()
	require.NoError(t, err)
	hash := sha256.Sum256(attrBytes)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	require.NoError(t, err)
	return sig
}

// buildLegacyCounterSignerInfo assembles the bare SignerInfo a RFC 2985
// counterSignature attribute carries, signing the primary signer's
// EncryptedDigest directly.
func buildLegacyCounterSignerInfo(t *testing.T, key *rsa.PrivateKey, cert *x509.Certificate, primaryEncryptedDigest []byte, signingTime time.Time) pkcs7.SignerInfo {
	t.Helper()
	digestAlg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)
	digest := sha256.Sum256(primaryEncryptedDigest)

	var attrs pkcs7.AttributeList
	require.NoError(t, attrs.Add(pkcs7.OidAttributeMessageDigest, digest[:]))
	require.NoError(t, attrs.Add(pkcs7.OidAttributeSigningTime, signingTime))

	return pkcs7.SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: pkcs7.IssuerAndSerial{
			IssuerName:   asn1.RawValue{FullBytes: cert.RawIssuer},
			SerialNumber: cert.SerialNumber,
		},
		DigestAlgorithm:           digestAlg,
		AuthenticatedAttributes:   attrs,
		DigestEncryptionAlgorithm: pkix.AlgorithmIdentifier{Algorithm: x509tools.OidPublicKeyRSA},
		EncryptedDigest:           signAttrsRSA(t, key, attrs),
	}
}

// TestParseEndToEndLegacyCounterSignature covers spec.md §8 scenario 2: a
// primary signature carrying a legacy PKCS#9 counterSignature attribute
// whose certificate comes from the outer SignedData's own bag.
func TestParseEndToEndLegacyCounterSignature(t *testing.T) {
	key, cert := selfSignedRSA(t)
	csKey, csCert := selfSignedRSA(t)
	fileDigest := sha256.Sum256([]byte("the image bytes"))
	ci, contentDigest := buildIndirectContent(t, fileDigest[:])

	primarySI := buildPrimarySignerInfo(t, key, cert, contentDigest, nil)
	signingTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	csInfo := buildLegacyCounterSignerInfo(t, csKey, csCert, primarySI.EncryptedDigest, signingTime)

	var unauth pkcs7.AttributeList
	require.NoError(t, unauth.Add(pkcs9.OidAttributeCounterSign, csInfo))
	primarySI.UnauthenticatedAttributes = unauth

	der := buildOuterDER(t, ci, buildRawCertificates(t, cert, csCert), primarySI)

	sig := Parse(der)
	require.True(t, sig.ok)
	assert.True(t, sig.valid, "warnings: %v", sig.Warnings)
	require.Len(t, sig.CounterSignatures, 1)
	assert.Equal(t, pkcs9.KindLegacy, sig.CounterSignatures[0].Kind)
	assert.True(t, signingTime.Equal(sig.CounterSignatures[0].SigningTime))

	records := sig.GetSignatures()
	require.Len(t, records, 1)
	require.Len(t, records[0].CounterSigners, 1)
	assert.Equal(t, "pkcs9", records[0].CounterSigners[0].Kind)
}

// TestParseEndToEndRFC3161Timestamp covers spec.md §8 scenario 3: a
// primary signature carrying a Microsoft-style RFC 3161 timestamp token,
// a fully nested PKCS#7 SignedData over a TSTInfo with its own
// certificate bag.
func TestParseEndToEndRFC3161Timestamp(t *testing.T) {
	key, cert := selfSignedRSA(t)
	tsaKey, tsaCert := selfSignedRSA(t)
	fileDigest := sha256.Sum256([]byte("the image bytes"))
	ci, contentDigest := buildIndirectContent(t, fileDigest[:])

	primarySI := buildPrimarySignerInfo(t, key, cert, contentDigest, nil)

	digestAlg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)
	imprint := sha256.Sum256(primarySI.EncryptedDigest)
	genTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tstInfo := pkcs9.TSTInfo{
		Version:        1,
		Policy:         asn1.ObjectIdentifier{1, 2, 3, 4},
		MessageImprint: pkcs9.MessageImprint{HashAlgorithm: digestAlg, HashedMessage: imprint[:]},
		SerialNumber:   big.NewInt(99),
		GenTime:        genTime,
	}
	tstContentInfo, err := pkcs7.NewContentInfo(pkcs9.OidContentTypeTSTInfo, tstInfo)
	require.NoError(t, err)
	tstContentBytes, err := tstContentInfo.Bytes()
	require.NoError(t, err)
	tstContentDigest := sha256.Sum256(tstContentBytes)

	var tsiAttrs pkcs7.AttributeList
	require.NoError(t, tsiAttrs.Add(pkcs7.OidAttributeContentType, pkcs9.OidContentTypeTSTInfo))
	require.NoError(t, tsiAttrs.Add(pkcs7.OidAttributeMessageDigest, tstContentDigest[:]))
	tsi := pkcs7.SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: pkcs7.IssuerAndSerial{
			IssuerName:   asn1.RawValue{FullBytes: tsaCert.RawIssuer},
			SerialNumber: tsaCert.SerialNumber,
		},
		DigestAlgorithm:           digestAlg,
		AuthenticatedAttributes:   tsiAttrs,
		DigestEncryptionAlgorithm: pkix.AlgorithmIdentifier{Algorithm: x509tools.OidPublicKeyRSA},
		EncryptedDigest:           signAttrsRSA(t, tsaKey, tsiAttrs),
	}

	tstSignedData := pkcs7.SignedData{
		Version:                    1,
		DigestAlgorithmIdentifiers: []pkix.AlgorithmIdentifier{digestAlg},
		ContentInfo:                tstContentInfo,
		Certificates:               buildRawCertificates(t, tsaCert),
		SignerInfos:                []pkcs7.SignerInfo{tsi},
	}
	tst := pkcs7.ContentInfoSignedData{ContentType: pkcs7.OidSignedData, Content: tstSignedData}

	var unauth pkcs7.AttributeList
	require.NoError(t, unauth.Add(pkcs9.OidAttributeTimeStampToken, tst))
	primarySI.UnauthenticatedAttributes = unauth

	der := buildOuterDER(t, ci, buildRawCertificates(t, cert), primarySI)

	sig := Parse(der)
	require.True(t, sig.ok)
	assert.True(t, sig.valid, "warnings: %v", sig.Warnings)
	require.Len(t, sig.CounterSignatures, 1)
	assert.Equal(t, pkcs9.KindRFC3161, sig.CounterSignatures[0].Kind)
	require.NotNil(t, sig.CounterSignatures[0].TSTInfo)
	assert.Equal(t, big.NewInt(99), sig.CounterSignatures[0].TSTInfo.SerialNumber)

	records := sig.GetSignatures()
	require.Len(t, records, 1)
	require.Len(t, records[0].CounterSigners, 1)
	assert.Equal(t, "ms-timestamp", records[0].CounterSigners[0].Kind)
}

// TestParseEndToEndNestedSignature covers spec.md §8 scenario 4: a
// second, independent Authenticode signature carried as a nested
// signature attribute alongside the primary one.
func TestParseEndToEndNestedSignature(t *testing.T) {
	key, cert := selfSignedRSA(t)
	nestedKey, nestedCert := selfSignedRSA(t)
	fileDigest := sha256.Sum256([]byte("the image bytes"))

	nestedCI, nestedContentDigest := buildIndirectContent(t, fileDigest[:])
	nestedSI := buildPrimarySignerInfo(t, nestedKey, nestedCert, nestedContentDigest, nil)
	nestedDER := buildOuterDER(t, nestedCI, buildRawCertificates(t, nestedCert), nestedSI)

	ci, contentDigest := buildIndirectContent(t, fileDigest[:])
	var unauth pkcs7.AttributeList
	require.NoError(t, unauth.Add(OidNestedSignature, asn1.RawValue{FullBytes: nestedDER}))
	primarySI := buildPrimarySignerInfo(t, key, cert, contentDigest, unauth)

	der := buildOuterDER(t, ci, buildRawCertificates(t, cert), primarySI)

	sig := Parse(der)
	require.True(t, sig.ok)
	assert.True(t, sig.valid, "warnings: %v", sig.Warnings)
	require.Len(t, sig.NestedSignatures, 1)
	assert.True(t, sig.NestedSignatures[0].ok)
	assert.True(t, sig.NestedSignatures[0].valid, "nested warnings: %v", sig.NestedSignatures[0].Warnings)

	records := sig.GetSignatures()
	assert.Len(t, records, 2)
}
