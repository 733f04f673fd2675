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

package pkcs9

import (
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/sassoftware/authenticode-verify/lib/pkcs7"
)

// Kind distinguishes the two counter-signature shapes Authenticode
// signers use.
type Kind string

const (
	// KindLegacy is the PKCS#9 (RFC 2985) counterSignature attribute: a
	// bare SignerInfo signing the primary signer's EncryptedDigest
	// directly, with certificates coming from the outer SignedData's bag.
	KindLegacy Kind = "pkcs9"
	// KindRFC3161 is a Microsoft-style RFC 3161 TimeStampToken: a fully
	// nested PKCS#7 SignedData over a TSTInfo, carrying its own
	// certificate bag.
	KindRFC3161 Kind = "ms-timestamp"
)

// DefaultMaxDepth bounds recursive legacy counter-signature chains
// (RFC 2985 permits arbitrarily deep nesting; a real Authenticode
// signer never emits more than one).
const DefaultMaxDepth = 8

// CounterSignature is a verified counter-signature of either kind,
// unified behind one shape so callers don't need to branch on Kind
// except to report it.
type CounterSignature struct {
	Kind          Kind
	SignerInfo    *pkcs7.SignerInfo
	Certificate   *x509.Certificate
	Intermediates []*x509.Certificate
	SigningTime   time.Time
	TSTInfo       *TSTInfo          // non-nil only for KindRFC3161
	Nested        *CounterSignature // non-nil only for KindLegacy chains
}

// TimestampedSignature pairs a primary signature with its optional
// counter-signature.
type TimestampedSignature struct {
	pkcs7.Signature
	CounterSignature *CounterSignature
}

// VerifyTimestamp looks for a counter-signature in sig's
// UnauthenticatedAttributes and checks its integrity. Certificate chain
// validation is the caller's responsibility (authenticode.Verify does
// this via certchain.Build).
func VerifyTimestamp(sig pkcs7.Signature) (CounterSignature, error) {
	cs, err := verifyRFC3161(sig)
	if err == nil {
		return cs, nil
	}
	if _, ok := err.(pkcs7.ErrNoAttribute); !ok {
		return CounterSignature{}, err
	}
	return verifyLegacy(sig, DefaultMaxDepth)
}

func verifyRFC3161(sig pkcs7.Signature) (CounterSignature, error) {
	var tst pkcs7.ContentInfoSignedData
	err := sig.SignerInfo.UnauthenticatedAttributes.GetOne(OidAttributeTimeStampToken, &tst)
	if err != nil {
		if _, ok := err.(pkcs7.ErrNoAttribute); !ok {
			return CounterSignature{}, err
		}
		if err = sig.SignerInfo.UnauthenticatedAttributes.GetOne(OidSpcTimeStampToken, &tst); err != nil {
			return CounterSignature{}, err
		}
	}
	if len(tst.Content.SignerInfos) != 1 {
		return CounterSignature{}, errors.New("pkcs9: timestamp token should have exactly one SignerInfo")
	}
	tsi := tst.Content.SignerInfos[0]
	certs, err := tst.Content.Certificates.Parse()
	if err != nil {
		return CounterSignature{}, err
	}
	verifyBlob, err := tst.Content.ContentInfo.Bytes()
	if err != nil {
		return CounterSignature{}, err
	}
	cert, err := tsi.Verify(verifyBlob, false, certs)
	if err != nil {
		return CounterSignature{}, err
	}
	info, err := unpackTSTInfo(&tst)
	if err != nil {
		return CounterSignature{}, err
	}
	if err := info.MessageImprint.Verify(sig.SignerInfo.EncryptedDigest); err != nil {
		return CounterSignature{}, err
	}
	return CounterSignature{
		Kind:          KindRFC3161,
		SignerInfo:    &tsi,
		Certificate:   cert,
		Intermediates: certs,
		SigningTime:   info.GenTime,
		TSTInfo:       info,
	}, nil
}

func verifyLegacy(sig pkcs7.Signature, depth int) (CounterSignature, error) {
	var tsi pkcs7.SignerInfo
	if err := sig.SignerInfo.UnauthenticatedAttributes.GetOne(OidAttributeCounterSign, &tsi); err != nil {
		return CounterSignature{}, err
	}
	// the counter-signature signs the primary signer's EncryptedDigest,
	// not any content of its own, and shares the outer SignedData's bag.
	cert, err := tsi.Verify(sig.SignerInfo.EncryptedDigest, false, sig.Intermediates)
	if err != nil {
		return CounterSignature{}, err
	}
	var signingTime time.Time
	if err := tsi.AuthenticatedAttributes.GetOne(pkcs7.OidAttributeSigningTime, &signingTime); err != nil {
		return CounterSignature{}, err
	}
	cs := CounterSignature{
		Kind:          KindLegacy,
		SignerInfo:    &tsi,
		Certificate:   cert,
		Intermediates: sig.Intermediates,
		SigningTime:   signingTime,
	}
	if depth > 0 {
		nestedSig := pkcs7.Signature{SignerInfo: &tsi, Certificate: cert, Intermediates: sig.Intermediates}
		if nested, err := verifyLegacy(nestedSig, depth-1); err == nil {
			cs.Nested = &nested
		}
	}
	return cs, nil
}

// VerifyOptionalTimestamp looks for a counter-signature and, if present,
// verifies it; a missing counter-signature is not an error, matching the
// core's rule that an absent timestamp only downgrades reporting, never
// aborts verification.
func VerifyOptionalTimestamp(sig pkcs7.Signature) (TimestampedSignature, error) {
	tsig := TimestampedSignature{Signature: sig}
	ts, err := VerifyTimestamp(sig)
	if _, ok := err.(pkcs7.ErrNoAttribute); ok {
		return tsig, nil
	} else if err != nil {
		return tsig, err
	}
	tsig.CounterSignature = &ts
	return tsig, nil
}

func unpackTSTInfo(psd *pkcs7.ContentInfoSignedData) (*TSTInfo, error) {
	infobytes, err := psd.Content.ContentInfo.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pkcs9: unpack TSTInfo: %w", err)
	}
	info := new(TSTInfo)
	if _, err := asn1.Unmarshal(infobytes, info); err != nil {
		return nil, fmt.Errorf("pkcs9: unpack TSTInfo: %w", err)
	}
	return info, nil
}
