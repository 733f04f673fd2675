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

package shared

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/sassoftware/authenticode-verify/lib/certloader"
	"github.com/sassoftware/authenticode-verify/lib/relicconfig"
)

// InitConfig loads the configuration file named by --config, falling
// back to the platform default location. A missing --config and a
// missing default file is not an error: commands that don't need a
// trust store (report) run without one.
func InitConfig() error {
	if CurrentConfig != nil {
		return nil
	}
	path := ArgConfig
	usedDefault := false
	if path == "" {
		path = relicconfig.DefaultConfig()
		usedDefault = true
	}
	if path == "" {
		return nil
	}
	cfg, err := relicconfig.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && usedDefault {
			return nil
		}
		if !usedDefault {
			return fmt.Errorf("config %s could not be read: %w", path, err)
		}
		return fmt.Errorf("--config not specified and default config at %s could not be read: %w", path, err)
	}
	CurrentConfig = cfg
	return nil
}

// LoadTrustStore resolves --trust against the loaded configuration. An
// empty name means no explicit anchors: certchain.Build then only
// checks that a chain structurally reaches a self-signed certificate.
func LoadTrustStore(name string) ([]*x509.Certificate, error) {
	if name == "" {
		return nil, nil
	}
	if err := InitConfig(); err != nil {
		return nil, err
	}
	if CurrentConfig == nil {
		return nil, errors.New("--trust given but no configuration file was loaded")
	}
	ts, err := CurrentConfig.GetTrustStore(name)
	if err != nil {
		return nil, err
	}
	return certloader.LoadBundle(ts.Bundle)
}

func OpenFile(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

func Fail(err error) error {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(70)
	}
	return err
}
