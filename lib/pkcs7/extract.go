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

package pkcs7

import (
	"crypto/x509"
	"fmt"
)

// ParseCertificates decodes only the certificate bag out of a PKCS#7
// blob, ignoring everything else. Used when the caller only needs a
// standalone certificate store (e.g. a detached trust-anchor bundle
// shipped as a degenerate, signerless PKCS#7 message).
func ParseCertificates(der []byte) ([]*x509.Certificate, error) {
	psd, err := Unmarshal(der)
	if err != nil {
		return nil, fmt.Errorf("pkcs7: %w", err)
	}
	certs, err := psd.Content.Certificates.Parse()
	if err != nil {
		return nil, fmt.Errorf("pkcs7: %w", err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("pkcs7: no certificates")
	}
	return certs, nil
}
