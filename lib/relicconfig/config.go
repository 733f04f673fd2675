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

// Package relicconfig loads the YAML configuration file for the
// authenticode-verify CLI: the trust anchor bundles to check signer
// chains against, and depth caps for the recursive parts of the
// signature tree.
package relicconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TrustStoreConfig names one set of trust anchors on disk.
type TrustStoreConfig struct {
	// Path to a PEM, DER, or PKCS#7 bundle of trusted root certificates.
	Bundle string `yaml:"bundle"`
}

// Config is the top-level shape of the verifier's configuration file.
type Config struct {
	// TrustStores are the named sets of trust anchors the verify command
	// can select with --trust. With no stores defined, --trust is an error;
	// the platform trust store is never consulted.
	TrustStores map[string]*TrustStoreConfig `yaml:"trustStores"`

	// MaxNestedSignatureDepth is read from the file, but nothing applies
	// it: authenticode.Parse always uses authenticode.DefaultMaxDepth.
	MaxNestedSignatureDepth int `yaml:"maxNestedSignatureDepth,omitempty"`

	// MaxCounterSignatureDepth is read from the file, but nothing applies
	// it: pkcs9.VerifyTimestamp always uses pkcs9.DefaultMaxDepth.
	MaxCounterSignatureDepth int `yaml:"maxCounterSignatureDepth,omitempty"`
}

// ReadFile loads and parses a configuration file at path.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("relicconfig: %w", err)
	}
	return cfg, nil
}

// GetTrustStore looks up a named trust store, returning an error that
// names the missing store so the CLI can report it directly.
func (c *Config) GetTrustStore(name string) (*TrustStoreConfig, error) {
	if c.TrustStores == nil {
		return nil, fmt.Errorf("no trust stores defined in configuration")
	}
	ts, ok := c.TrustStores[name]
	if !ok {
		return nil, fmt.Errorf("trust store %q not found in configuration", name)
	}
	return ts, nil
}
