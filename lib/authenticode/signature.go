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

// Package authenticode decodes and verifies the Authenticode signature
// carried in a PE's WIN_CERTIFICATE attribute certificate table: the
// Microsoft SpcIndirectDataContent envelope, the signer and any
// counter-signatures or nested signatures hanging off it, and the
// certificate chains involved. The caller is responsible for locating
// the WIN_CERTIFICATE blob within the PE and for computing the file's
// own image digest to compare against FileDigest.
package authenticode

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/sassoftware/authenticode-verify/lib/certchain"
	"github.com/sassoftware/authenticode-verify/lib/pkcs7"
	"github.com/sassoftware/authenticode-verify/lib/pkcs9"
	"github.com/sassoftware/authenticode-verify/lib/x509tools"
)

// DefaultMaxDepth bounds recursive nested-signature descent (OID
// 1.3.6.1.4.1.311.2.4.1); a hostile or buggy input can otherwise nest
// Authenticode signatures inside each other without limit.
const DefaultMaxDepth = 8

// Pkcs7Signature is one Authenticode signature: the root one built
// directly from a WIN_CERTIFICATE payload, or a nested one recursively
// decoded out of a parent's unauthenticated attributes. Construction is
// total — it never returns an error — and records every structural or
// cryptographic problem it finds in Warnings instead.
type Pkcs7Signature struct {
	Version                 int
	ContentDigestAlgorithms []asn1.ObjectIdentifier
	ContentInfo             IndirectData
	SignerInfo              *pkcs7.SignerInfo
	Detail                  signerDetail
	Certificates            []*x509.Certificate
	CounterSignatures       []pkcs9.CounterSignature
	NestedSignatures        []*Pkcs7Signature
	Warnings                []string

	ok    bool // outer envelope decoded as signedData; false means "no signature at all"
	valid bool // running result of checks 1-9; check 10 is folded in by Verify
}

// Parse decodes der as an Authenticode WIN_CERTIFICATE payload (the
// outer PKCS#7 DER/BER, with any WIN_CERTIFICATE header already
// stripped by the caller).
func Parse(der []byte) *Pkcs7Signature {
	return parse(der, 0, DefaultMaxDepth)
}

func parse(der []byte, depth, maxDepth int) *Pkcs7Signature {
	sig := &Pkcs7Signature{valid: true}
	warn := func(s string) {
		sig.Warnings = append(sig.Warnings, s)
		sig.valid = false
	}

	psd, err := pkcs7.Unmarshal(der)
	if err != nil {
		warn("invalid outer pkcs7 content type")
		return sig
	}
	sig.ok = true
	sd := psd.Content
	sig.Version = sd.Version
	for _, alg := range sd.DigestAlgorithmIdentifiers {
		sig.ContentDigestAlgorithms = append(sig.ContentDigestAlgorithms, alg.Algorithm)
	}
	sig.ContentInfo = decodeIndirectData(sd.ContentInfo, warn)

	certs, err := sd.Certificates.Parse()
	if err != nil {
		warn("malformed attribute: certificates")
	}
	sig.Certificates = certs

	switch len(sd.SignerInfos) {
	case 0:
		warn("missing signer info")
		return sig
	case 1:
		// expected shape
	default:
		warn("unexpected signer count")
	}
	si := &sd.SignerInfos[0]
	sig.SignerInfo = si

	if si.Version != 1 {
		warn("malformed attribute: signerInfo.version")
	}
	checkDigestAlgorithm(sig, si, warn)
	sig.Detail = decodeSignerDetail(si, warn)
	checkMessageDigest(sig, warn)
	checkSignerCertificate(sig, si, warn)
	checkSignature(sig, si, warn)
	decodeUnauthenticatedAttributes(sig, si, depth, maxDepth, warn)

	return sig
}

// checkDigestAlgorithm implements checklist item 4: SignerInfo's digest
// algorithm must be one of SignedData's declared algorithms and must
// match the one the indirect data content was hashed with.
func checkDigestAlgorithm(sig *Pkcs7Signature, si *pkcs7.SignerInfo, warn func(string)) {
	declared := false
	for _, oid := range sig.ContentDigestAlgorithms {
		if oid.Equal(si.DigestAlgorithm.Algorithm) {
			declared = true
			break
		}
	}
	if !declared || !si.DigestAlgorithm.Algorithm.Equal(sig.ContentInfo.DigestAlgorithm) {
		warn("digest algorithm mismatch")
	}
}

// checkMessageDigest implements checklist item 5: the authenticated
// messageDigest attribute must equal the hash of the indirect data
// content's DER encoding, under SignerInfo's digest algorithm.
func checkMessageDigest(sig *Pkcs7Signature, warn func(string)) {
	if sig.ContentInfo.raw == nil || sig.Detail.MessageDigest == "" {
		return
	}
	hash, ok := x509tools.PkixDigestToHash(pkix.AlgorithmIdentifier{Algorithm: sig.SignerInfo.DigestAlgorithm.Algorithm})
	if !ok || !hash.Available() {
		return
	}
	w := hash.New()
	w.Write(sig.ContentInfo.raw)
	if hex.EncodeToString(w.Sum(nil)) != sig.Detail.MessageDigest {
		warn("message digest mismatch")
	}
}

// checkSignerCertificate implements checklist item 6.
func checkSignerCertificate(sig *Pkcs7Signature, si *pkcs7.SignerInfo, warn func(string)) {
	if _, err := si.FindCertificate(sig.Certificates); err != nil {
		warn("signer certificate not found")
	}
}

// checkSignature implements checklist item 7: encryptedDigest must
// verify as a signature over the DER-encoded authenticated attributes
// (or, if none are present, over the content digest directly).
func checkSignature(sig *Pkcs7Signature, si *pkcs7.SignerInfo, warn func(string)) {
	cert, err := si.FindCertificate(sig.Certificates)
	if err != nil {
		return // already warned by checkSignerCertificate
	}
	hash, ok := x509tools.PkixDigestToHash(si.DigestAlgorithm)
	if !ok || !hash.Available() {
		return
	}
	var digest []byte
	if len(si.AuthenticatedAttributes) != 0 {
		attrBytes, err := si.AuthenticatedAttributes.Bytes()
		if err != nil {
			warn("malformed attribute: authenticatedAttributes")
			return
		}
		w := hash.New()
		w.Write(attrBytes)
		digest = w.Sum(nil)
	} else if raw, err := hex.DecodeString(sig.ContentInfo.Digest); err == nil {
		digest = raw
	}
	if digest == nil {
		return
	}
	err = x509tools.Verify(cert.PublicKey, hash, digest, si.EncryptedDigest)
	if errors.Is(err, rsa.ErrVerification) {
		err = x509tools.Verify(cert.PublicKey, 0, digest, si.EncryptedDigest)
	}
	if err != nil {
		warn("signature verification failed")
	}
}

// decodeUnauthenticatedAttributes implements checklist items 8 and 9 (by
// delegating the countersignature/timestamp crypto checks to pkcs9,
// which performs them as part of decoding) plus the nested-signature
// recursion from component design 4.5, bounded by maxDepth.
func decodeUnauthenticatedAttributes(sig *Pkcs7Signature, si *pkcs7.SignerInfo, depth, maxDepth int, warn func(string)) {
	ts, err := pkcs9.VerifyOptionalTimestamp(pkcs7.Signature{SignerInfo: si, Intermediates: sig.Certificates})
	if err != nil {
		sig.Warnings = append(sig.Warnings, mapCounterSignatureWarning(err))
		isMsTimestamp := si.UnauthenticatedAttributes.Exists(pkcs9.OidAttributeTimeStampToken) ||
			si.UnauthenticatedAttributes.Exists(pkcs9.OidSpcTimeStampToken)
		if !isMsTimestamp {
			// a legacy PKCS#9 counter-signature failure downgrades isValid; a
			// broken MS timestamp is reported but does not, matching relic's
			// own treatment of an unverifiable timestamp as informational.
			sig.valid = false
		}
	} else if ts.CounterSignature != nil {
		sig.CounterSignatures = flattenCounterSignature(ts.CounterSignature)
	}

	if depth >= maxDepth {
		if si.UnauthenticatedAttributes.Exists(OidNestedSignature) {
			warn("nested signature recursion depth exceeded")
		}
		return
	}
	var rawList []asn1.RawValue
	if err := si.UnauthenticatedAttributes.GetAll(OidNestedSignature, &rawList); err == nil {
		for _, raw := range rawList {
			sig.NestedSignatures = append(sig.NestedSignatures, parse(raw.FullBytes, depth+1, maxDepth))
		}
	} else if _, ok := err.(pkcs7.ErrNoAttribute); !ok {
		warn("malformed attribute: " + OidNestedSignature.String())
	}
}

// flattenCounterSignature unpacks a (possibly recursive, legacy PKCS#9)
// counter-signature chain into report order: outermost counter-signer
// first, matching getSignatures()'s depth-first convention.
func flattenCounterSignature(cs *pkcs9.CounterSignature) []pkcs9.CounterSignature {
	var out []pkcs9.CounterSignature
	for cs != nil {
		next := cs.Nested
		flat := *cs
		flat.Nested = nil
		out = append(out, flat)
		cs = next
	}
	return out
}

// mapCounterSignatureWarning turns a pkcs9 decode/verify failure into
// one of the core's stable warning strings.
func mapCounterSignatureWarning(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "certificate missing from signedData"):
		return "counter-signer certificate not found"
	case strings.Contains(msg, "digest check failed"), strings.Contains(msg, "imprint"):
		return "timestamp imprint mismatch"
	case strings.Contains(msg, "verification failed"), errors.Is(err, rsa.ErrVerification):
		return "signature verification failed"
	default:
		return "malformed attribute: " + pkcs9.OidAttributeCounterSign.String()
	}
}

// Verify completes the checklist from component design 4.8 by building
// certificate chains for the signer and every counter-signer (checklist
// item 10) against trustStore, then recurses into nested signatures. It
// returns the same overall validity reported on DigitalSignature.IsValid.
//
// extraCerts are folded into the chain-building bag alongside whatever
// the signature itself carries, without being treated as trust anchors --
// useful for a caller that has an intermediate a malformed blob omitted.
func (sig *Pkcs7Signature) Verify(trustStore []*x509.Certificate, extraCerts ...*x509.Certificate) bool {
	if !sig.ok {
		return false
	}
	if sig.SignerInfo != nil {
		bag := sig.Certificates
		if len(extraCerts) != 0 {
			bag = append(append([]*x509.Certificate{}, sig.Certificates...), extraCerts...)
		}
		if cert, err := sig.SignerInfo.FindCertificate(sig.Certificates); err == nil {
			if chain := certchain.Build(cert, bag, trustStore); !chain.Valid {
				sig.Warnings = append(sig.Warnings, "broken certificate chain")
				sig.valid = false
			}
		}
		for _, cs := range sig.CounterSignatures {
			if cs.Certificate == nil {
				continue
			}
			csBag := cs.Intermediates
			if len(extraCerts) != 0 {
				csBag = append(append([]*x509.Certificate{}, cs.Intermediates...), extraCerts...)
			}
			if chain := certchain.Build(cs.Certificate, csBag, trustStore); !chain.Valid {
				sig.Warnings = append(sig.Warnings, "broken certificate chain")
				// a counter-signer's own chain, like its timestamp verification,
				// is reported but does not invalidate the primary signature.
			}
		}
	}
	for _, nested := range sig.NestedSignatures {
		nested.Verify(trustStore, extraCerts...)
	}
	return sig.valid
}

// DigitalSignature is one flattened, fully-owned Authenticode signature
// record: the external report shape of a Pkcs7Signature node.
type DigitalSignature struct {
	SignerCertificate *x509tools.Record     `json:"signer_certificate,omitempty"`
	FileDigest        string                `json:"file_digest"`
	DigestAlgorithm   string                `json:"digest_algorithm"`
	ProgramName       string                `json:"program_name,omitempty"`
	MoreInfoURL       string                `json:"more_info_url,omitempty"`
	Certificates      []x509tools.Record    `json:"certificates"`
	CounterSigners    []CounterSignerRecord `json:"counter_signers"`
	Warnings          []string              `json:"warnings"`
	IsValid           bool                  `json:"is_valid"`
}

// CounterSignerRecord is the unified report shape for a legacy PKCS#9 or
// RFC 3161 MS-timestamp counter-signature.
type CounterSignerRecord struct {
	Kind        string            `json:"kind"`
	SigningTime string            `json:"signing_time,omitempty"`
	Certificate *x509tools.Record `json:"certificate,omitempty"`
	TSAName     string            `json:"tsa_name,omitempty"`
}

// GetSignatures flattens this signature and every nested signature (in
// depth-first order) into report records.
func (sig *Pkcs7Signature) GetSignatures() []DigitalSignature {
	if !sig.ok {
		return nil
	}
	out := []DigitalSignature{sig.toRecord()}
	for _, nested := range sig.NestedSignatures {
		out = append(out, nested.GetSignatures()...)
	}
	return out
}

func (sig *Pkcs7Signature) toRecord() DigitalSignature {
	rec := DigitalSignature{
		FileDigest:      sig.ContentInfo.Digest,
		DigestAlgorithm: digestAlgorithmName(sig.ContentInfo.DigestAlgorithm),
		ProgramName:     sig.Detail.ProgramName,
		MoreInfoURL:     sig.Detail.MoreInfoURL,
		Warnings:        append([]string(nil), sig.Warnings...),
		IsValid:         sig.valid,
	}
	for _, c := range sig.Certificates {
		rec.Certificates = append(rec.Certificates, x509tools.CreateCertificate(x509tools.NewCertificate(c)))
	}
	if sig.SignerInfo != nil {
		if cert, err := sig.SignerInfo.FindCertificate(sig.Certificates); err == nil {
			r := x509tools.CreateCertificate(x509tools.NewCertificate(cert))
			rec.SignerCertificate = &r
		}
	}
	for _, cs := range sig.CounterSignatures {
		csr := CounterSignerRecord{Kind: string(cs.Kind)}
		if !cs.SigningTime.IsZero() {
			csr.SigningTime = x509tools.FormatTime(cs.SigningTime)
		}
		if cs.Certificate != nil {
			r := x509tools.CreateCertificate(x509tools.NewCertificate(cs.Certificate))
			csr.Certificate = &r
		}
		if cs.TSTInfo != nil {
			if seq := cs.TSTInfo.Tsa.RDNSequence(); seq != nil {
				csr.TSAName = x509tools.FormatRDNSequence(seq)
			}
		}
		rec.CounterSigners = append(rec.CounterSigners, csr)
	}
	return rec
}

func digestAlgorithmName(oid asn1.ObjectIdentifier) string {
	hash, ok := x509tools.PkixDigestToHash(pkix.AlgorithmIdentifier{Algorithm: oid})
	if !ok {
		return ""
	}
	return x509tools.HashName(hash)
}

// GetAllCertificates returns the deduplicated (by SHA-256 fingerprint)
// union of every certificate reachable from this signature: its own
// bag, every counter-signer's bag, and every nested signature's, in
// that order.
func (sig *Pkcs7Signature) GetAllCertificates() []x509tools.Record {
	seen := map[string]bool{}
	var out []x509tools.Record
	var walk func(s *Pkcs7Signature)
	add := func(c *x509.Certificate) {
		view := x509tools.NewCertificate(c)
		fp := view.FingerprintSHA256()
		if seen[fp] {
			return
		}
		seen[fp] = true
		out = append(out, x509tools.CreateCertificate(view))
	}
	walk = func(s *Pkcs7Signature) {
		for _, c := range s.Certificates {
			add(c)
		}
		for _, cs := range s.CounterSignatures {
			if cs.Certificate != nil {
				add(cs.Certificate)
			}
			for _, c := range cs.Intermediates {
				add(c)
			}
		}
		for _, nested := range s.NestedSignatures {
			walk(nested)
		}
	}
	walk(sig)
	return out
}
