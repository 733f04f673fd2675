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

// Package verify implements the "verify" CLI subcommand: decode a raw
// Authenticode signature blob (the contents of a PE's WIN_CERTIFICATE
// entry, already extracted by the caller) and report whether it checks
// out.
package verify

import (
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sassoftware/authenticode-verify/cmdline/shared"
	"github.com/sassoftware/authenticode-verify/lib/authenticode"
	"github.com/sassoftware/authenticode-verify/lib/certloader"
)

var VerifyCmd = &cobra.Command{
	Use:   "verify <file> [file...]",
	Short: "Verify a raw Authenticode signature blob",
	RunE:  verifyCmd,
}

var (
	argTrustName         string
	argTrustedCerts      []string
	argIntermediateCerts []string
)

func init() {
	shared.RootCmd.AddCommand(VerifyCmd)
	VerifyCmd.Flags().StringVar(&argTrustName, "trust", "", "Named trust store from the configuration file")
	VerifyCmd.Flags().StringArrayVar(&argTrustedCerts, "cert", nil, "Add a trusted root certificate (PEM, DER, or PKCS#7)")
	VerifyCmd.Flags().StringArrayVar(&argIntermediateCerts, "intermediate-cert", nil, "Add an extra cert to help build the trust chain")
}

func verifyCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("expected 1 or more files")
	}
	trustStore, err := loadTrustStore()
	if err != nil {
		return err
	}
	intermediate, err := certloader.LoadBundles(argIntermediateCerts)
	if err != nil {
		return err
	}
	rc := 0
	for _, path := range args {
		if err := verifyOne(path, trustStore, intermediate); err != nil {
			fmt.Printf("%s ERROR: %s\n", path, err)
			rc = 1
		}
	}
	if rc != 0 {
		fmt.Fprintln(os.Stderr, "ERROR: 1 or more files did not validate")
	}
	os.Exit(rc)
	return nil
}

func loadTrustStore() ([]*x509.Certificate, error) {
	trustStore, err := shared.LoadTrustStore(argTrustName)
	if err != nil {
		return nil, err
	}
	explicit, err := certloader.LoadBundles(argTrustedCerts)
	if err != nil {
		return nil, err
	}
	trustStore = append(trustStore, explicit...)
	return trustStore, nil
}

func verifyOne(path string, trustStore, intermediate []*x509.Certificate) error {
	f, err := shared.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	der, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	sig := authenticode.Parse(der)
	valid := sig.Verify(trustStore, intermediate...)
	for _, w := range sig.Warnings {
		log.Warn().Str("file", path).Msg(w)
	}
	if !valid {
		return fmt.Errorf("INVALID - %s", firstWarning(sig.Warnings))
	}
	signed := sig.GetSignatures()
	if len(signed) == 0 {
		return errors.New("no signatures decoded")
	}
	for _, rec := range signed {
		name := "(unknown signer)"
		if rec.SignerCertificate != nil {
			name = rec.SignerCertificate.RawSubject
		}
		fmt.Printf("%s: OK - %s\n", path, name)
	}
	return nil
}

func firstWarning(warnings []string) string {
	if len(warnings) == 0 {
		return "invalid signature"
	}
	return warnings[0]
}
