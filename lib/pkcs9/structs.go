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

// Package pkcs9 decodes the two shapes an Authenticode counter-signature
// takes: a legacy PKCS#9 (RFC 2985) counterSignature attribute holding a
// bare SignerInfo, and a RFC 3161 TimeStampToken holding a fully nested
// PKCS#7 SignedData over a TSTInfo.
package pkcs9

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"
)

var (
	// RFC 2985
	OidAttributeCounterSign = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 6}
	// RFC 3161 / Microsoft SPC_RFC3161_OBJID
	OidAttributeTimeStampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}
	OidSpcTimeStampToken       = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 3, 3, 1}
	// RFC 3161 §2.4.2
	OidContentTypeTSTInfo = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}
)

// MessageImprint is the hashed representation of the data a timestamp
// token vouches for (RFC 3161 §2.4.1).
type MessageImprint struct {
	HashAlgorithm pkix.AlgorithmIdentifier
	HashedMessage []byte
}

// GeneralName is the X.509 GeneralName CHOICE, decoded loosely: only the
// directoryName [4] alternative is exposed since that's the only one a
// TSA's TSTInfo.Tsa field practically uses.
type GeneralName struct {
	Value asn1.RawValue
}

// Accuracy is the optional precision qualifier on a TSTInfo's genTime.
type Accuracy struct {
	Seconds int `asn1:"optional"`
	Millis  int `asn1:"optional,tag:0"`
	Micros  int `asn1:"optional,tag:1"`
}

// TSTInfo is the content signed by a RFC 3161 TimeStampToken (RFC 3161
// §2.4.2). It is carried inside the nested PKCS#7 SignedData's
// ContentInfo, not the SignedData's SignerInfo attributes.
type TSTInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint MessageImprint
	SerialNumber   *big.Int
	GenTime        time.Time
	Accuracy       Accuracy         `asn1:"optional"`
	Ordering       bool             `asn1:"optional"`
	Nonce          *big.Int         `asn1:"optional"`
	Tsa            GeneralName      `asn1:"optional,tag:0"`
	Extensions     []pkix.Extension `asn1:"optional,tag:1"`
}
