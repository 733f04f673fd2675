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
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

var (
	OidSpcIndirectDataContent = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}
	OidSpcSpOpusInfo          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 12}
	OidNestedSignature        = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 4, 1}
)

// SpcIndirectDataContent is the content of the outer PKCS#7's
// ContentInfo for an Authenticode signature (Microsoft's own extension
// to PKCS#7, not part of any RFC). The Data field names what kind of
// thing was hashed (a PE image, an MSI, a SIP-registered format); the
// core only cares about the digest itself, not that decorative payload.
type SpcIndirectDataContent struct {
	Data          SpcAttributeTypeAndOptionalValue
	MessageDigest DigestInfo
}

// SpcAttributeTypeAndOptionalValue names the format-specific value that
// follows without decoding it further.
type SpcAttributeTypeAndOptionalValue struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"optional"`
}

// DigestInfo is the {algorithm, digest} pair carried inside
// SpcIndirectDataContent.
type DigestInfo struct {
	DigestAlgorithm pkix.AlgorithmIdentifier
	Digest          []byte
}

// SpcString is Microsoft's ASN.1 CHOICE between a BMPString and an
// IA5String, used for the opus statement's program name.
type SpcString struct {
	Unicode asn1.RawValue `asn1:"optional,tag:0"`
	Ascii   asn1.RawValue `asn1:"optional,tag:1"`
}

// Text decodes whichever alternative is present.
func (s SpcString) Text() string {
	if len(s.Unicode.Bytes) > 0 {
		return decodeBMPString(s.Unicode.Bytes)
	}
	if len(s.Ascii.Bytes) > 0 {
		return string(s.Ascii.Bytes)
	}
	return ""
}

func decodeBMPString(raw []byte) string {
	if len(raw)%2 != 0 {
		return ""
	}
	words := make([]uint16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.BigEndian, words); err != nil {
		return ""
	}
	return string(utf16.Decode(words))
}

// SpcLink is Microsoft's CHOICE of url/moniker/file; only the URL
// alternative is decoded, since that's the only one spcSpOpusInfo's
// moreInfo field practically carries.
type SpcLink struct {
	URL asn1.RawValue `asn1:"optional,tag:0"`
}

// Text returns the URL, if present.
func (l SpcLink) Text() string {
	return strings.TrimSpace(string(l.URL.Bytes))
}

// SpcSpOpusInfo is the decorative "program name / more info URL"
// authenticated attribute (OID 1.3.6.1.4.1.311.2.1.12).
type SpcSpOpusInfo struct {
	ProgramName SpcString `asn1:"optional,tag:0"`
	MoreInfo    SpcLink   `asn1:"optional,tag:1"`
}
