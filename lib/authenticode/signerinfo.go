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

// contentTypeNames gives the short name the report layer uses for the
// authenticated contentType attribute's value; anything else falls back
// to its dotted OID string.
var contentTypeNames = map[string]string{
	OidSpcIndirectDataContent.String(): "spcIndirectDataContent",
	pkcs7.OidData.String():             "data",
	pkcs7.OidSignedData.String():       "signedData",
}

// signerDetail is the decoded, report-ready subset of a SignerInfo's
// authenticated attributes: the decorative opus statement plus the two
// attributes verify() checks against the rest of the tree.
type signerDetail struct {
	ContentTypeOID string // short name of the authenticated contentType attribute, if present
	MessageDigest  string // lowercase hex
	ProgramName    string
	MoreInfoURL    string
}

// decodeSignerDetail walks si's authenticated attributes per the rules
// in the core: contentType and messageDigest are captured verbatim,
// spcSpOpusInfo is decoded opportunistically. An absent attribute is not
// an error; a malformed one of any of the three produces a warning.
func decodeSignerDetail(si *pkcs7.SignerInfo, warn func(string)) signerDetail {
	var detail signerDetail

	var ct asn1.ObjectIdentifier
	if err := si.AuthenticatedAttributes.GetOne(pkcs7.OidAttributeContentType, &ct); err == nil {
		if name, ok := contentTypeNames[ct.String()]; ok {
			detail.ContentTypeOID = name
		} else {
			detail.ContentTypeOID = ct.String()
		}
	} else if _, ok := err.(pkcs7.ErrNoAttribute); !ok {
		warn("malformed attribute: " + pkcs7.OidAttributeContentType.String())
	}

	var md []byte
	if err := si.AuthenticatedAttributes.GetOne(pkcs7.OidAttributeMessageDigest, &md); err == nil {
		detail.MessageDigest = hex.EncodeToString(md)
	} else if _, ok := err.(pkcs7.ErrNoAttribute); !ok {
		warn("malformed attribute: " + pkcs7.OidAttributeMessageDigest.String())
	}

	var opus SpcSpOpusInfo
	if err := si.AuthenticatedAttributes.GetOne(OidSpcSpOpusInfo, &opus); err == nil {
		detail.ProgramName = opus.ProgramName.Text()
		detail.MoreInfoURL = opus.MoreInfo.Text()
	} else if _, ok := err.(pkcs7.ErrNoAttribute); !ok {
		warn("malformed attribute: " + OidSpcSpOpusInfo.String())
	}

	return detail
}
