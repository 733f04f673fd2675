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

// Package pkcs7 decodes the PKCS#7 SignedData structure Authenticode
// signatures are wrapped in, plus the SignerInfo attributes both the
// primary signer and any counter-signer carry.
package pkcs7

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math/big"
)

var (
	OidData                   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OidSignedData             = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OidAttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OidAttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OidAttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	OidAttributeCounterSign   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 6}
)

// ContentInfo is the outer ContentInfo wrapper shared by both the top
// level PKCS#7 message and the countersignature nested inside it.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// NewContentInfo builds a ContentInfo whose Content, if non-nil, is
// wrapped the way encoding/asn1 expects for the explicit [0] tag.
func NewContentInfo(contentType asn1.ObjectIdentifier, value interface{}) (ContentInfo, error) {
	ci := ContentInfo{ContentType: contentType}
	if value == nil {
		return ci, nil
	}
	der, err := asn1.Marshal(value)
	if err != nil {
		return ci, err
	}
	// Same shape Unmarshal produces for a parsed [0] field: the RawValue is
	// the [0] element itself and Bytes holds the full inner encoding.
	ci.Content = asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: der}
	return ci, nil
}

// Bytes returns the DER-encoded inner value, or nil if Content is absent
// (a detached signature).
func (ci ContentInfo) Bytes() ([]byte, error) {
	if len(ci.Content.Bytes) == 0 {
		return nil, nil
	}
	var octets []byte
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &octets); err == nil {
		return octets, nil
	}
	// Content types other than data (SpcIndirectDataContent, TSTInfo) are
	// carried directly, without data's OCTET STRING framing.
	return ci.Content.Bytes, nil
}

// Unmarshal decodes the inner content into v.
func (ci ContentInfo) Unmarshal(v interface{}) error {
	if len(ci.Content.Bytes) == 0 {
		return errors.New("pkcs7: no content to unmarshal")
	}
	_, err := asn1.Unmarshal(ci.Content.Bytes, v)
	return err
}

// SignedData is the PKCS#7 SignedData content type (RFC 2315 §9.1).
type SignedData struct {
	Version                    int                        `asn1:"default:1"`
	DigestAlgorithmIdentifiers []pkix.AlgorithmIdentifier `asn1:"set"`
	ContentInfo                ContentInfo
	Certificates               RawCertificates        `asn1:"optional,tag:0"`
	CRLs                       []pkix.CertificateList `asn1:"optional,tag:1"`
	SignerInfos                []SignerInfo           `asn1:"set"`
}

// ContentInfoSignedData is the outermost message: a ContentInfo whose
// content type is signedData and whose payload is a SignedData.
type ContentInfoSignedData struct {
	ContentType asn1.ObjectIdentifier
	Content     SignedData `asn1:"explicit,optional,tag:0"`
}

// Unmarshal decodes a top level Authenticode/PKCS#7 blob.
func Unmarshal(der []byte) (*ContentInfoSignedData, error) {
	var psd ContentInfoSignedData
	if _, err := asn1.Unmarshal(der, &psd); err != nil {
		return nil, err
	}
	if !psd.ContentType.Equal(OidSignedData) {
		return nil, errors.New("pkcs7: not a signedData content type")
	}
	return &psd, nil
}

// RawCertificates holds the DER bytes of the certificates [0] IMPLICIT
// SET field without eagerly parsing it, so a bag that fails to parse in
// bulk doesn't prevent decoding the rest of the message.
type RawCertificates struct {
	Raw asn1.RawContent
}

// Parse decodes the certificate bag into individual certificates.
func (rc RawCertificates) Parse() ([]*x509.Certificate, error) {
	if len(rc.Raw) == 0 {
		return nil, nil
	}
	var val asn1.RawValue
	if _, err := asn1.Unmarshal(rc.Raw, &val); err != nil {
		return nil, err
	}
	return x509.ParseCertificates(val.Bytes)
}

type attribute struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"set"`
}

// SignerInfo is one entry of a SignedData's signerInfos SET, and also
// the shape a PKCS#9 counter-signature attribute's value decodes into.
type SignerInfo struct {
	Version                   int                      `asn1:"default:1"`
	IssuerAndSerialNumber     IssuerAndSerial          ``
	DigestAlgorithm           pkix.AlgorithmIdentifier ``
	AuthenticatedAttributes   AttributeList            `asn1:"optional,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier ``
	EncryptedDigest           []byte                   ``
	UnauthenticatedAttributes AttributeList            `asn1:"optional,tag:1"`
}

// IssuerAndSerial names a certificate by its issuer DN and serial
// number, the only certificate reference PKCS#7 carries inline.
type IssuerAndSerial struct {
	IssuerName   asn1.RawValue
	SerialNumber *big.Int
}
