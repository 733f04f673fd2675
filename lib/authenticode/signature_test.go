package authenticode

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassoftware/authenticode-verify/lib/pkcs7"
	"github.com/sassoftware/authenticode-verify/lib/pkcs9"
	"github.com/sassoftware/authenticode-verify/lib/x509tools"
)

func selfSignedRSA(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	// a random serial keeps certificates from separate calls distinct by
	// issuer+serial, the only way a SignerInfo names its certificate.
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "widget-signer"},
		NotBefore:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2034, 1, 1, 0, 0, 0, 0, time.UTC),
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

// buildSignature assembles a Pkcs7Signature node by hand, the way Parse
// would after decoding, so the checklist functions can be exercised
// without round-tripping a full PKCS#7 DER blob (which would also
// require hand-building the certificates SET, orthogonal to what these
// checks verify).
func buildSignature(t *testing.T, key *rsa.PrivateKey, cert *x509.Certificate, fileDigest []byte, tamperMessageDigest bool) *Pkcs7Signature {
	t.Helper()

	digestAlg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)

	spc := SpcIndirectDataContent{
		Data:          SpcAttributeTypeAndOptionalValue{Type: asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 15}},
		MessageDigest: DigestInfo{DigestAlgorithm: digestAlg, Digest: fileDigest},
	}
	spcDER, err := asn1.Marshal(spc)
	require.NoError(t, err)
	contentDigest := sha256.Sum256(spcDER)
	if tamperMessageDigest {
		contentDigest[0] ^= 0xff
	}

	var attrs pkcs7.AttributeList
	require.NoError(t, attrs.Add(pkcs7.OidAttributeContentType, OidSpcIndirectDataContent))
	require.NoError(t, attrs.Add(pkcs7.OidAttributeMessageDigest, contentDigest[:]))

	attrBytes, err := attrs.Bytes()
	require.NoError(t, err)
	attrHash := sha256.Sum256(attrBytes)
	encSig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, attrHash[:])
	require.NoError(t, err)

	var issuerRaw asn1.RawValue
	_, err = asn1.Unmarshal(cert.RawIssuer, &issuerRaw)
	require.NoError(t, err)

	si := pkcs7.SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: pkcs7.IssuerAndSerial{
			IssuerName:   issuerRaw,
			SerialNumber: cert.SerialNumber,
		},
		DigestAlgorithm:           digestAlg,
		AuthenticatedAttributes:   attrs,
		DigestEncryptionAlgorithm: pkix.AlgorithmIdentifier{Algorithm: x509tools.OidPublicKeyRSA},
		EncryptedDigest:           encSig,
	}

	sig := &Pkcs7Signature{
		ok:                      true,
		valid:                   true,
		Version:                 1,
		ContentDigestAlgorithms: []asn1.ObjectIdentifier{x509tools.OidDigestSHA256},
		ContentInfo: IndirectData{
			ContentType:     spc.Data.Type,
			DigestAlgorithm: x509tools.OidDigestSHA256,
			Digest:          hex.EncodeToString(fileDigest),
			raw:             spcDER,
		},
		SignerInfo:   &si,
		Certificates: []*x509.Certificate{cert},
	}
	sig.Detail = signerDetail{MessageDigest: hex.EncodeToString(contentDigest[:])}
	return sig
}

func TestChecklistHappyPath(t *testing.T) {
	key, cert := selfSignedRSA(t)
	fileDigest := sha256.Sum256([]byte("the image bytes"))
	sig := buildSignature(t, key, cert, fileDigest[:], false)

	warn := func(s string) { t.Fatalf("unexpected warning: %s", s) }
	checkDigestAlgorithm(sig, sig.SignerInfo, warn)
	checkMessageDigest(sig, warn)
	checkSignerCertificate(sig, sig.SignerInfo, warn)
	checkSignature(sig, sig.SignerInfo, warn)
	assert.True(t, sig.valid)
}

func TestChecklistMessageDigestMismatch(t *testing.T) {
	key, cert := selfSignedRSA(t)
	fileDigest := sha256.Sum256([]byte("the image bytes"))
	sig := buildSignature(t, key, cert, fileDigest[:], true)

	var warnings []string
	warn := func(s string) { warnings = append(warnings, s) }
	checkMessageDigest(sig, warn)
	assert.Contains(t, warnings, "message digest mismatch")
}

func TestChecklistUnknownSigner(t *testing.T) {
	_, cert := selfSignedRSA(t)
	_, other := selfSignedRSA(t)
	fileDigest := sha256.Sum256([]byte("x"))
	key2, _ := rsa.GenerateKey(rand.Reader, 2048)
	sig := buildSignature(t, key2, cert, fileDigest[:], false)
	sig.Certificates = []*x509.Certificate{other} // signer's own cert not in the bag

	var warnings []string
	warn := func(s string) { warnings = append(warnings, s) }
	checkSignerCertificate(sig, sig.SignerInfo, warn)
	assert.Contains(t, warnings, "signer certificate not found")
}

func TestParseEmptyInput(t *testing.T) {
	sig := Parse(nil)
	assert.False(t, sig.ok)
	assert.Contains(t, sig.Warnings, "invalid outer pkcs7 content type")
	assert.Empty(t, sig.GetSignatures())
}

func TestParseGarbageInput(t *testing.T) {
	sig := Parse([]byte{0x01, 0x02, 0x03, 0x04})
	assert.False(t, sig.ok)
	assert.Len(t, sig.Warnings, 1)
	assert.Empty(t, sig.GetSignatures())
}

func TestGetAllCertificatesDedup(t *testing.T) {
	_, cert := selfSignedRSA(t)
	root := &Pkcs7Signature{ok: true, Certificates: []*x509.Certificate{cert}}
	root.NestedSignatures = []*Pkcs7Signature{
		{ok: true, Certificates: []*x509.Certificate{cert}},
	}
	root.CounterSignatures = []pkcs9.CounterSignature{
		{Kind: pkcs9.KindLegacy, Certificate: cert},
	}

	all := root.GetAllCertificates()
	assert.Len(t, all, 1)
	assert.Equal(t, x509tools.NewCertificate(cert).FingerprintSHA256(), all[0].FingerprintSHA256)
}

func TestFlattenCounterSignatureOrder(t *testing.T) {
	inner := &pkcs9.CounterSignature{Kind: pkcs9.KindLegacy, SigningTime: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)}
	outer := &pkcs9.CounterSignature{Kind: pkcs9.KindLegacy, SigningTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Nested: inner}
	flat := flattenCounterSignature(outer)
	require.Len(t, flat, 2)
	assert.Equal(t, outer.SigningTime, flat[0].SigningTime)
	assert.Equal(t, inner.SigningTime, flat[1].SigningTime)
	assert.Nil(t, flat[0].Nested)
	assert.Nil(t, flat[1].Nested)
}
