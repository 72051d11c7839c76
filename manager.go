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

package jwtkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenManager creates and parses tokens by type name.
type TokenManager interface {
	Create(typeName string, opts ...CreateOption) (*PlainToken, error)
	Parse(raw string, typeName string) (Token, error)
	ParseTokenWithClaims(raw string, typeName string, requiredClaims ...string) (*PlainToken, error)
}

// Manager composes a token type with its signing configuration to create
// and validate tokens.  It holds no state beyond its registries and is
// safe for concurrent use once the registries are populated.
type Manager struct {
	configs      *ConfigRegistry
	types        *TypeRegistry
	issuedAtSkew time.Duration
	logger       logrus.FieldLogger
}

var _ TokenManager = (*Manager)(nil)

// NewManager creates a Manager over the given registries.
func NewManager(configs *ConfigRegistry, types *TypeRegistry, opts ...Option) *Manager {
	o := newOptions(opts)
	return &Manager{
		configs:      configs,
		types:        types,
		issuedAtSkew: o.issuedAtSkew,
		logger:       o.logger,
	}
}

// Configurations returns the configuration registry.
func (m *Manager) Configurations() *ConfigRegistry {
	return m.configs
}

// Types returns the type registry.
func (m *Manager) Types() *TypeRegistry {
	return m.types
}

func (m *Manager) resolve(typeName string) (TokenType, *SigningConfiguration, error) {
	t, err := m.types.GetTypeByName(typeName)
	if err != nil {
		return nil, nil, err
	}
	config, err := m.ConfigurationFor(t)
	if err != nil {
		return nil, nil, err
	}
	return t, config, nil
}

// ConfigurationFor returns the signing configuration a type uses.
func (m *Manager) ConfigurationFor(t TokenType) (*SigningConfiguration, error) {
	if n, ok := t.(ConfigurationNamer); ok && n.ConfigurationName() != "" {
		return m.configs.GetConfiguration(n.ConfigurationName())
	}
	return m.configs.GetDefaultConfiguration()
}

// Create issues a signed token of the named type.
//
// "iat" is set slightly in the past, then the options are applied in
// order, then "sub" is set to the type name, and finally the type applies
// its own defaults, which may override any of the above.
func (m *Manager) Create(typeName string, opts ...CreateOption) (*PlainToken, error) {
	t, config, err := m.resolve(typeName)
	if err != nil {
		return nil, err
	}

	b := config.Builder()
	b.IssuedAt(b.Now().Add(-m.issuedAtSkew))
	for _, opt := range opts {
		opt(b)
	}
	b.RelatedTo(typeName)
	t.ConfigureBuilder(b)
	if err := b.Err(); err != nil {
		return nil, fmt.Errorf("type %q: %w", typeName, err)
	}

	tok, err := b.Sign(config.Signer(), config.SigningKey())
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", typeName, err)
	}

	m.logger.WithFields(logrus.Fields{
		"type":          typeName,
		"configuration": config.Name(),
	}).Debug("issued token")
	return tok, nil
}

// Parse decodes raw and checks it against the named type's constraints.
func (m *Manager) Parse(raw string, typeName string) (Token, error) {
	t, config, err := m.resolve(typeName)
	if err != nil {
		return nil, err
	}

	tok, err := config.Parse([]byte(raw))
	if err != nil {
		return nil, err
	}

	if constraints := t.Constraints(config); len(constraints) > 0 {
		if err := config.Assert(tok, constraints...); err != nil {
			m.logger.WithFields(logrus.Fields{
				"type":          typeName,
				"configuration": config.Name(),
			}).WithError(err).Info("token rejected")
			return nil, err
		}
	}
	return tok, nil
}

// ParseTokenWithClaims is Parse for plain tokens that must also carry
// every one of requiredClaims.  The first missing claim is reported.
func (m *Manager) ParseTokenWithClaims(raw string, typeName string, requiredClaims ...string) (*PlainToken, error) {
	tok, err := m.Parse(raw, typeName)
	if err != nil {
		return nil, err
	}

	pt, ok := tok.(*PlainToken)
	if !ok {
		return nil, fmt.Errorf("%w: token must be a plain signed token", ErrInvalidTokenType)
	}

	for _, name := range requiredClaims {
		if err := HasClaim(name).Assert(pt); err != nil {
			return nil, err
		}
	}
	return pt, nil
}

// IsClientError reports whether err was caused by the token or names
// supplied by the caller rather than by the system's configuration.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrInvalidTokenType) ||
		errors.Is(err, ErrUnknownType)
}
