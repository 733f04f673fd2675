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
	"bytes"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

type rdnAttr struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue
}

type rdnNameSet []rdnAttr

type attrName struct {
	Type asn1.ObjectIdentifier
	Name string
}

// Short names used both when formatting a one-line DN and when filling
// in the named slots of a DNAttributes struct. attName below does a
// linear scan since the table is small; ParseDN refers to entries by
// index, so their positions must stay as they are.
var nameStyleLdap = []attrName{
	{asn1.ObjectIdentifier{2, 5, 4, 3}, "CN"},
	{asn1.ObjectIdentifier{2, 5, 4, 4}, "surname"},
	{asn1.ObjectIdentifier{2, 5, 4, 5}, "serialNumber"},
	{asn1.ObjectIdentifier{2, 5, 4, 6}, "C"},
	{asn1.ObjectIdentifier{2, 5, 4, 7}, "L"},
	{asn1.ObjectIdentifier{2, 5, 4, 8}, "ST"},
	{asn1.ObjectIdentifier{2, 5, 4, 9}, "street"},
	{asn1.ObjectIdentifier{2, 5, 4, 10}, "O"},
	{asn1.ObjectIdentifier{2, 5, 4, 11}, "OU"},
	{asn1.ObjectIdentifier{2, 5, 4, 12}, "title"},
	{asn1.ObjectIdentifier{2, 5, 4, 13}, "description"},
	{asn1.ObjectIdentifier{2, 5, 4, 42}, "givenName"},
	{asn1.ObjectIdentifier{2, 5, 4, 43}, "initials"},
	{asn1.ObjectIdentifier{2, 5, 4, 44}, "generationQualifier"},
	{asn1.ObjectIdentifier{2, 5, 4, 46}, "dnQualifier"},
	{asn1.ObjectIdentifier{2, 5, 4, 65}, "pseudonym"},
	{asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 25}, "dc"},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}, "emailAddress"},
}

const InvalidName = "<invalid>"

// FormatPkixName renders a DER-encoded RDNSequence as a one-line string
// in the relic/LDAP style, exactly in DER order (no RFC 2253 reordering),
// so a typical name starts with its least specific RDN, e.g. C=.
func FormatPkixName(der []byte) string {
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err != nil {
		return InvalidName
	}
	seqbytes := seq.Bytes
	var formatted []string
	for len(seqbytes) > 0 {
		var rdnSet rdnNameSet
		var err error
		seqbytes, err = asn1.UnmarshalWithParams(seqbytes, &rdnSet, "set")
		if err != nil {
			return InvalidName
		}
		var elems []string
		for _, attr := range rdnSet {
			elems = append(elems, fmt.Sprintf("%s=%s", attName(attr.Type), attValue(attr.Value)))
		}
		formatted = append(formatted, strings.Join(elems, "+"))
	}
	if len(formatted) == 0 {
		return ""
	}
	return "/" + strings.Join(formatted, "/") + "/"
}

func attName(t asn1.ObjectIdentifier) string {
	for _, name := range nameStyleLdap {
		if name.Type.Equal(t) {
			return name.Name
		}
	}
	return "OID." + t.String()
}

func attValue(raw asn1.RawValue) string {
	switch raw.Tag {
	case asn1.TagUTF8String, asn1.TagIA5String, asn1.TagPrintableString, asn1.TagT61String:
		var ret interface{}
		if _, err := asn1.Unmarshal(raw.FullBytes, &ret); err != nil {
			return InvalidName
		}
		s, ok := ret.(string)
		if !ok {
			return InvalidName
		}
		return strings.ReplaceAll(s, "/", "\\/")
	case 30: // BMPString
		words := make([]uint16, len(raw.Bytes)/2)
		if err := binary.Read(bytes.NewReader(raw.Bytes), binary.BigEndian, words); err != nil {
			return InvalidName
		}
		return strings.ReplaceAll(string(utf16.Decode(words)), "/", "\\/")
	default:
		return InvalidName
	}
}

// DNAttributes is the named-slot view of a parsed DN required by the
// X509Certificate view (spec component C2). Unrecognized RDN attribute
// types are dropped, not an error.
type DNAttributes struct {
	Country             string
	Organization        string
	OrganizationalUnit  string
	CommonName          string
	State               string
	Locality            string
	SerialNumber        string
	Title               string
	Surname             string
	GivenName           string
	Initials            string
	Pseudonym           string
	NameQualifier       string
	GenerationQualifier string
	EmailAddress        string
}

// ParseDN walks a DER-encoded RDNSequence and fills in the subset of
// DNAttributes that has a recognized short name. Malformed input yields
// a zero-value DNAttributes, matching the "fail soft" rule for C1/C2
// decoders.
func ParseDN(der []byte) DNAttributes {
	var out DNAttributes
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err != nil {
		return out
	}
	seqbytes := seq.Bytes
	for len(seqbytes) > 0 {
		var rdnSet rdnNameSet
		var err error
		seqbytes, err = asn1.UnmarshalWithParams(seqbytes, &rdnSet, "set")
		if err != nil {
			return out
		}
		for _, attr := range rdnSet {
			v := attValue(attr.Value)
			if v == InvalidName {
				continue
			}
			switch {
			case attr.Type.Equal(nameStyleLdap[3].Type): // C
				out.Country = v
			case attr.Type.Equal(nameStyleLdap[7].Type): // O
				out.Organization = v
			case attr.Type.Equal(nameStyleLdap[8].Type): // OU
				out.OrganizationalUnit = v
			case attr.Type.Equal(nameStyleLdap[0].Type): // CN
				out.CommonName = v
			case attr.Type.Equal(nameStyleLdap[5].Type): // ST
				out.State = v
			case attr.Type.Equal(nameStyleLdap[4].Type): // L
				out.Locality = v
			case attr.Type.Equal(nameStyleLdap[2].Type): // serialNumber
				out.SerialNumber = v
			case attr.Type.Equal(nameStyleLdap[9].Type): // title
				out.Title = v
			case attr.Type.Equal(nameStyleLdap[1].Type): // surname (2.5.4.4)
				out.Surname = v
			case attr.Type.Equal(nameStyleLdap[11].Type): // givenName
				out.GivenName = v
			case attr.Type.Equal(nameStyleLdap[12].Type): // initials
				out.Initials = v
			case attr.Type.Equal(nameStyleLdap[15].Type): // pseudonym
				out.Pseudonym = v
			case attr.Type.Equal(nameStyleLdap[14].Type): // dnQualifier
				out.NameQualifier = v
			case attr.Type.Equal(nameStyleLdap[13].Type): // generationQualifier
				out.GenerationQualifier = v
			case attr.Type.Equal(nameStyleLdap[17].Type): // emailAddress
				out.EmailAddress = v
			}
		}
	}
	return out
}
