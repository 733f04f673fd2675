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

// Package certloader loads trust anchor bundles off disk for the
// verifier's --cert and --intermediate-cert flags: PEM, DER, or PKCS#7
// files containing one or more X.509 certificates.
package certloader

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"

	"github.com/sassoftware/authenticode-verify/lib/pkcs7"
)

const asn1Magic = 0x30 // weak but good enough?
var pkcs7SignedData = []byte{0x06, 0x09, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x07, 0x02}

type errNoCerts struct{}

func (errNoCerts) Error() string {
	return "failed to find any certificates in bundle"
}

var ErrNoCerts = errNoCerts{}

// ParseCertificates parses a bundle of certificates in PEM, DER, or
// PKCS#7 form. PEM input may mix "CERTIFICATE" and "PKCS7" blocks.
func ParseCertificates(blob []byte) ([]*x509.Certificate, error) {
	if len(blob) >= 1 && blob[0] == asn1Magic {
		return parseDER(blob)
	}
	var certs []*x509.Certificate
	rest := blob
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" || block.Type == "PKCS7" {
			these, err := parseDER(block.Bytes)
			if err != nil {
				return nil, err
			}
			certs = append(certs, these...)
		}
	}
	if len(certs) == 0 {
		return nil, ErrNoCerts
	}
	return certs, nil
}

func parseDER(der []byte) ([]*x509.Certificate, error) {
	if len(der) >= 32 && bytes.Contains(der[:32], pkcs7SignedData) {
		return pkcs7.ParseCertificates(der)
	}
	certs, err := x509.ParseCertificates(der)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, ErrNoCerts
	}
	return certs, nil
}

// LoadBundle reads and parses a single trust anchor bundle file.
func LoadBundle(path string) ([]*x509.Certificate, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCertificates(blob)
}

// LoadBundles reads and parses every path, concatenating their
// certificates. A file that contains none of interest is an error, not
// a silent skip, per LoadBundle.
func LoadBundles(paths []string) ([]*x509.Certificate, error) {
	var all []*x509.Certificate
	for _, path := range paths {
		certs, err := LoadBundle(path)
		if err != nil {
			return nil, errors.Join(errors.New(path), err)
		}
		all = append(all, certs...)
	}
	return all, nil
}
