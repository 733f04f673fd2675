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

import "time"

// FormatTime renders a parsed UTCTime/GeneralizedTime value in the
// canonical form the report layer uses everywhere a certificate or
// signing-time timestamp is surfaced. encoding/asn1 already collapses
// both ASN.1 time types into time.Time (UTCTime's two-digit year pivot
// at 50 is handled by the standard library per RFC 5280), so this is
// purely a presentation step.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatCertTime renders the notBefore/notAfter fields of a certificate
// as an ISO-8601 UTC string ("2006-01-02T15:04:05Z"), unlike FormatTime.
func FormatCertTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
