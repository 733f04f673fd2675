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
	"encoding/asn1"
	"encoding/hex"

	"github.com/sassoftware/authenticode-verify/lib/pkcs7"
)

// IndirectData is the decoded form of an Authenticode SpcIndirectDataContent:
// the content type of whatever was hashed (a PE image, an MSI, ...) along
// with the digest algorithm and digest itself. The core never interprets
// the hashed payload; a caller compares Digest against its own computation
// over the file image.
type IndirectData struct {
	ContentType     asn1.ObjectIdentifier
	DigestAlgorithm asn1.ObjectIdentifier
	Digest          string // lowercase hex
	raw             []byte // DER of the decoded SpcIndirectDataContent, for the messageDigest check
}

// decodeIndirectData decodes ci (the SignedData's own ContentInfo) as an
// SpcIndirectDataContent, appending a warning and returning a zero value
// on any failure rather than propagating an error.
func decodeIndirectData(ci pkcs7.ContentInfo, warn func(string)) IndirectData {
	if !ci.ContentType.Equal(OidSpcIndirectDataContent) {
		warn("invalid indirect data content type")
		return IndirectData{}
	}
	der, err := ci.Bytes()
	if err != nil {
		warn("malformed attribute: " + OidSpcIndirectDataContent.String())
		return IndirectData{}
	}
	var content SpcIndirectDataContent
	if _, err := asn1.Unmarshal(der, &content); err != nil {
		warn("malformed attribute: " + OidSpcIndirectDataContent.String())
		return IndirectData{}
	}
	return IndirectData{
		ContentType:     content.Data.Type,
		DigestAlgorithm: content.MessageDigest.DigestAlgorithm.Algorithm,
		Digest:          hex.EncodeToString(content.MessageDigest.Digest),
		raw:             der,
	}
}
