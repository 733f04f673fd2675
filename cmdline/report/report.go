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

// Package report implements the "report" CLI subcommand: dump the
// flattened DigitalSignature list for a blob as text or JSON, with no
// pass/fail exit code -- this is for inspection, not gating.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sassoftware/authenticode-verify/cmdline/shared"
	"github.com/sassoftware/authenticode-verify/lib/authenticode"
)

var ReportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Print the decoded signature tree of an Authenticode blob",
	Args:  cobra.ExactArgs(1),
	RunE:  reportCmd,
}

var argJSON bool

func init() {
	shared.RootCmd.AddCommand(ReportCmd)
	ReportCmd.Flags().BoolVar(&argJSON, "json", false, "Print as JSON instead of text")
}

func reportCmd(cmd *cobra.Command, args []string) error {
	f, err := shared.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	der, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	sig := authenticode.Parse(der)
	sig.Verify(nil)
	signed := sig.GetSignatures()

	if argJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(signed)
	}
	for i, rec := range signed {
		fmt.Printf("signature %d:\n", i)
		fmt.Printf("  valid: %v\n", rec.IsValid)
		fmt.Printf("  digest: %s (%s)\n", rec.FileDigest, rec.DigestAlgorithm)
		if rec.ProgramName != "" {
			fmt.Printf("  program: %s\n", rec.ProgramName)
		}
		if rec.SignerCertificate != nil {
			fmt.Printf("  signer: %s\n", rec.SignerCertificate.RawSubject)
		}
		for _, cs := range rec.CounterSigners {
			fmt.Printf("  counter-signer (%s): %s\n", cs.Kind, cs.SigningTime)
		}
		for _, w := range rec.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	return nil
}
