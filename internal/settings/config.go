/*
 * Copyright 2022 Michael Graff.
 *
 * Licensed under the Apache License, Version 2.0 (the "License")
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package settings loads the declarative configuration of signing
// configurations and token types, and builds the registries and token
// manager from it.
package settings

import "time"

// Config is the root configuration structure.
type Config struct {
	// DefaultConfiguration names the signing configuration used by types
	// that do not name one.
	DefaultConfiguration string `koanf:"default_configuration" usage:"name of the default signing configuration"`

	// Configurations are the named signing configurations.
	Configurations map[string]SigningConfig `koanf:"configurations"`

	// Types are the declarative token types.
	Types map[string]TypeConfig `koanf:"types"`

	// Leeway is the clock skew tolerated when validating time claims,
	// as a duration string like "30s".
	Leeway string `koanf:"leeway" usage:"clock skew tolerated when validating tokens"`

	// IssuedAtSkew is how far in the past "iat" is placed, as a duration
	// string.  Empty keeps the default of one second.
	IssuedAtSkew string `koanf:"issued_at_skew" usage:"how far in the past iat is set"`

	Log LogConfig `koanf:"log"`

	Server ServerConfig `koanf:"server"`
}

// SigningConfig describes one signing configuration.
type SigningConfig struct {
	// Asymmetric selects separate signing and verification keys.  Unset
	// means true.
	Asymmetric *bool `koanf:"asymmetric"`

	// Signer is the algorithm, such as "HS256" or "ES256".
	Signer string `koanf:"signer"`

	SigningKey      KeyConfig `koanf:"signing_key"`
	VerificationKey KeyConfig `koanf:"verification_key"`
}

// KeyConfig provides key material inline or from a file.
type KeyConfig struct {
	Content    string `koanf:"content"`
	File       string `koanf:"file"`
	Passphrase string `koanf:"pass"`
}

// TypeConfig declares a configurable token type.
type TypeConfig struct {
	Configuration string                 `koanf:"configuration"`
	Claims        map[string]interface{} `koanf:"claims"`
	Headers       map[string]interface{} `koanf:"headers"`
	Subject       string                 `koanf:"subject"`
	Audience      string                 `koanf:"audience"`
	ID            string                 `koanf:"id"`
	Issuer        string                 `koanf:"issuer"`
	Exp           int64                  `koanf:"exp"`
	UsedAfter     int64                  `koanf:"used_after"`
	IssuedAt      int64                  `koanf:"issued_at"`
	Leeway        string                 `koanf:"leeway"`
}

// LogConfig configures logrus.
type LogConfig struct {
	// Level is a logrus level name.
	Level string `koanf:"level" usage:"log level (debug, info, warn, error)"`
	// Format is "text" or "json".
	Format string `koanf:"format" usage:"log format (text, json)"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen string `koanf:"listen" usage:"HTTP listen address"`

	// CORSOrigins enables CORS for the given origins.
	CORSOrigins []string `koanf:"cors_origins"`
}

// IsAsymmetric reports whether the configuration is asymmetric.
func (c SigningConfig) IsAsymmetric() bool {
	return c.Asymmetric == nil || *c.Asymmetric
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
