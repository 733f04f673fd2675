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

// Package certchain builds a candidate certificate chain for a signer
// out of the unordered certificate bag Authenticode embeds alongside a
// signature, without relying on crypto/x509's own chain builder (which
// expects a root pool and rejects a signer-only leaf with no trust
// anchor rather than returning a partial chain for inspection).
package certchain

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"sort"
	"time"
)

// Chain is a candidate certificate chain, signer first, extending
// toward (and possibly reaching) a root. Valid summarizes whether the
// chain both terminates in a self-signed certificate and, when a trust
// store was supplied, that terminal certificate is anchored in it.
// Building never removes a certificate from Certificates because of an
// expiry or trust failure; Valid is the only signal of that.
type Chain struct {
	Certificates []*x509.Certificate
	Valid        bool
}

// Build walks from signer toward a root, at each step choosing the
// candidate in bag (or store) whose subject matches the current
// certificate's issuer. When more than one candidate matches, the
// non-expired one is preferred, then the one with the lexicographically
// smallest SHA-256 fingerprint, so the result is deterministic.
func Build(signer *x509.Certificate, bag []*x509.Certificate, store []*x509.Certificate) Chain {
	chain := Chain{Certificates: []*x509.Certificate{signer}}
	pool := make([]*x509.Certificate, 0, len(bag)+len(store))
	pool = append(pool, bag...)
	pool = append(pool, store...)

	current := signer
	seen := map[string]bool{fingerprintKey(signer): true}
	for {
		if selfSigned(current) {
			chain.Valid = len(store) == 0 || anchored(current, store)
			return chain
		}
		parent := findParent(current, pool)
		if parent == nil {
			chain.Valid = false
			return chain
		}
		key := fingerprintKey(parent)
		if seen[key] {
			// cycle in a malformed or adversarial bag; stop rather than loop.
			chain.Valid = false
			return chain
		}
		seen[key] = true
		chain.Certificates = append(chain.Certificates, parent)
		current = parent
	}
}

func selfSigned(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawSubject, cert.RawIssuer)
}

func anchored(cert *x509.Certificate, store []*x509.Certificate) bool {
	key := fingerprintKey(cert)
	for _, anchor := range store {
		if fingerprintKey(anchor) == key {
			return true
		}
	}
	return false
}

func findParent(cert *x509.Certificate, pool []*x509.Certificate) *x509.Certificate {
	var candidates []*x509.Certificate
	for _, c := range pool {
		if !bytes.Equal(c.RawSubject, cert.RawIssuer) {
			continue
		}
		if len(cert.AuthorityKeyId) != 0 && len(c.SubjectKeyId) != 0 &&
			!bytes.Equal(cert.AuthorityKeyId, c.SubjectKeyId) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	now := time.Now()
	sort.Slice(candidates, func(i, j int) bool {
		iExpired, jExpired := isExpired(candidates[i], now), isExpired(candidates[j], now)
		if iExpired != jExpired {
			return !iExpired
		}
		return fingerprintKey(candidates[i]) < fingerprintKey(candidates[j])
	})
	return candidates[0]
}

func isExpired(cert *x509.Certificate, now time.Time) bool {
	return now.Before(cert.NotBefore) || now.After(cert.NotAfter)
}

func fingerprintKey(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return string(sum[:])
}
