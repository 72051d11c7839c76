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
	"fmt"
	"sync"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// FactoryOptions are the declarative parameters of a signing configuration.
type FactoryOptions struct {
	// Signer is the algorithm identifier, such as "HS256" or "RS256".
	Signer string
	// SigningKey is the signing key content: the shared secret for
	// symmetric signers, PEM or JWK JSON otherwise.
	SigningKey string
	// SigningKeyPassphrase decrypts an encrypted PEM signing key.
	SigningKeyPassphrase string
	// VerificationKey is the public key content for asymmetric signers.
	// If empty, the public half of the signing key is used.
	VerificationKey string
}

// ConfigFactory holds the parameters of one named signing configuration
// and builds its SigningConfiguration on demand.
//
// Injected collaborators (SetSigner, SetSigningKey, SetVerificationKey)
// take precedence over values derived from the options and must be set
// before the factory is first used.  Each collaborator is resolved at most
// once.
type ConfigFactory struct {
	name       string
	asymmetric bool
	options    FactoryOptions

	mu              sync.Mutex
	signer          Signer
	signingKey      jwk.Key
	verificationKey jwk.Key
}

// NewConfigFactory creates a factory for the named configuration.
func NewConfigFactory(name string, asymmetric bool, options FactoryOptions) *ConfigFactory {
	return &ConfigFactory{
		name:       name,
		asymmetric: asymmetric,
		options:    options,
	}
}

// Name returns the configuration name.
func (f *ConfigFactory) Name() string {
	return f.name
}

// Asymmetric reports whether the configuration uses separate signing and
// verification keys.
func (f *ConfigFactory) Asymmetric() bool {
	return f.asymmetric
}

// SetSigner overrides the signer named in the options.
func (f *ConfigFactory) SetSigner(signer Signer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signer = signer
}

// SetSigningKey overrides the signing key content in the options.
func (f *ConfigFactory) SetSigningKey(key jwk.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signingKey = key
}

// SetVerificationKey overrides the verification key content in the options.
func (f *ConfigFactory) SetVerificationKey(key jwk.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verificationKey = key
}

// CreateConfiguration builds the SigningConfiguration.  The clock is used
// for issuance and temporal validation.
func (f *ConfigFactory) CreateConfiguration(clock jwt.Clock) (*SigningConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	signer, err := f.resolveSigner()
	if err != nil {
		return nil, fmt.Errorf("configuration %q: %w", f.name, err)
	}

	signingKey, err := f.resolveSigningKey(signer)
	if err != nil {
		return nil, fmt.Errorf("configuration %q: signing key: %w", f.name, err)
	}

	verificationKey := signingKey
	if f.asymmetric {
		verificationKey, err = f.resolveVerificationKey()
		if err != nil {
			return nil, fmt.Errorf("configuration %q: verification key: %w", f.name, err)
		}
	}

	if clock == nil {
		clock = &TimeClock{}
	}

	return &SigningConfiguration{
		name:            f.name,
		asymmetric:      f.asymmetric,
		signer:          signer,
		signingKey:      signingKey,
		verificationKey: verificationKey,
		clock:           clock,
	}, nil
}

func (f *ConfigFactory) resolveSigner() (Signer, error) {
	if f.signer != nil {
		return f.signer, nil
	}
	signer, err := SignerFor(f.options.Signer)
	if err != nil {
		return nil, err
	}
	if IsSymmetric(signer) == f.asymmetric {
		return nil, fmt.Errorf("signer %s does not match asymmetric=%t", signer.Algorithm(), f.asymmetric)
	}
	f.signer = signer
	return signer, nil
}

func (f *ConfigFactory) resolveSigningKey(signer Signer) (jwk.Key, error) {
	if f.signingKey != nil {
		return f.signingKey, nil
	}
	key, err := NewKey(f.options.SigningKey, f.options.SigningKeyPassphrase, !f.asymmetric)
	if err != nil {
		return nil, err
	}
	if _, ok := key.Get(jwk.AlgorithmKey); !ok {
		if err := key.Set(jwk.AlgorithmKey, signer.Algorithm()); err != nil {
			return nil, err
		}
	}
	f.signingKey = key
	return key, nil
}

func (f *ConfigFactory) resolveVerificationKey() (jwk.Key, error) {
	if f.verificationKey != nil {
		return f.verificationKey, nil
	}

	var (
		key jwk.Key
		err error
	)
	if len(f.options.VerificationKey) == 0 {
		key, err = jwk.PublicKeyOf(f.signingKey)
	} else {
		key, err = NewKey(f.options.VerificationKey, "", false)
	}
	if err != nil {
		return nil, err
	}
	f.verificationKey = key
	return key, nil
}

// SigningConfiguration bundles a signer with its signing and verification
// keys.  It is immutable once built and shared by all callers.
type SigningConfiguration struct {
	name            string
	asymmetric      bool
	signer          Signer
	signingKey      jwk.Key
	verificationKey jwk.Key
	clock           jwt.Clock
}

// Name returns the configuration name.
func (c *SigningConfiguration) Name() string { return c.name }

// Signer returns the signer.
func (c *SigningConfiguration) Signer() Signer { return c.signer }

// SigningKey returns the key tokens are signed with.
func (c *SigningConfiguration) SigningKey() jwk.Key { return c.signingKey }

// VerificationKey returns the key signatures are verified with.  For a
// symmetric configuration this is the signing key.
func (c *SigningConfiguration) VerificationKey() jwk.Key { return c.verificationKey }

// Clock returns the clock used for issuance and validation.
func (c *SigningConfiguration) Clock() jwt.Clock { return c.clock }

// Builder starts a new token.
func (c *SigningConfiguration) Builder() *Builder {
	return newBuilder(c.clock)
}

// Parse decodes a token without validating it.
func (c *SigningConfiguration) Parse(raw []byte) (Token, error) {
	return decodeToken(raw)
}

// Assert evaluates constraints against a token.
func (c *SigningConfiguration) Assert(tok Token, constraints ...Constraint) error {
	return Assert(tok, constraints...)
}

// PublicKeys returns the public verification keys as a JWK set.  A
// symmetric configuration publishes nothing.
func (c *SigningConfiguration) PublicKeys() (jwk.Set, error) {
	set := jwk.NewSet()
	if !c.asymmetric {
		return set, nil
	}
	pub, err := jwk.PublicKeyOf(c.verificationKey)
	if err != nil {
		return nil, fmt.Errorf("configuration %q: %w", c.name, err)
	}
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}
	return set, nil
}
