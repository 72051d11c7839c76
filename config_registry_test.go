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
	"sync"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRegistry_GetConfiguration(t *testing.T) {
	env := setupManager(t, nil)

	tests := []struct {
		name       string
		config     string
		wantSigner jwa.SignatureAlgorithm
		wantErr    error
	}{
		{"symmetric", "default", jwa.HS256, nil},
		{"asymmetric", "ec", jwa.ES256, nil},
		{"unknown", "nope", "", ErrUnknownConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.configs.GetConfiguration(tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.config, got.Name())
			assert.Equal(t, tt.wantSigner, got.Signer().Algorithm())

			again, err := env.configs.GetConfiguration(tt.config)
			require.NoError(t, err)
			assert.Same(t, got, again)
		})
	}
}

func TestConfigRegistry_unknownLeavesNoState(t *testing.T) {
	env := setupManager(t, nil)
	_, err := env.configs.GetConfiguration("nope")
	require.ErrorIs(t, err, ErrUnknownConfiguration)
	_, found := env.configs.cached("nope")
	assert.False(t, found)
	assert.Equal(t, []string{"default", "ec"}, env.configs.Names())
}

func TestConfigRegistry_GetDefaultConfiguration(t *testing.T) {
	env := setupManager(t, nil)
	def, err := env.configs.GetDefaultConfiguration()
	require.NoError(t, err)
	named, err := env.configs.GetConfiguration("default")
	require.NoError(t, err)
	assert.Same(t, named, def)

	missing := NewConfigRegistry("missing")
	_, err = missing.GetDefaultConfiguration()
	require.ErrorIs(t, err, ErrUnknownConfiguration)
}

func TestConfigRegistry_lastRegistrationWins(t *testing.T) {
	r := NewConfigRegistry("default")
	r.AddConfigFactory(NewConfigFactory("default", false, FactoryOptions{Signer: "HS256", SigningKey: testSecret}))
	r.AddConfigFactory(NewConfigFactory("default", false, FactoryOptions{Signer: "HS512", SigningKey: testSecret}))

	c, err := r.GetConfiguration("default")
	require.NoError(t, err)
	assert.Equal(t, jwa.HS512, c.Signer().Algorithm())
}

func TestConfigRegistry_buildErrorsAreNotCached(t *testing.T) {
	r := NewConfigRegistry("default")
	r.AddConfigFactory(NewConfigFactory("default", false, FactoryOptions{Signer: "HS256"}))

	_, err := r.GetConfiguration("default")
	require.EqualError(t, err, `configuration "default": signing key: key content is empty`)

	r.AddConfigFactory(NewConfigFactory("default", false, FactoryOptions{Signer: "HS256", SigningKey: testSecret}))
	_, err = r.GetConfiguration("default")
	require.NoError(t, err)
}

func TestConfigRegistry_blankKeyContent(t *testing.T) {
	r := NewConfigRegistry("default")
	r.AddConfigFactory(NewConfigFactory("default", true, FactoryOptions{Signer: "ES256", SigningKey: "\n"}))

	var err error
	require.NotPanics(t, func() {
		_, err = r.GetDefaultConfiguration()
	})
	require.EqualError(t, err, `configuration "default": signing key: key content is empty`)
}

func TestConfigRegistry_concurrentFirstAccess(t *testing.T) {
	env := setupManager(t, nil)

	const callers = 32
	got := make([]*SigningConfiguration, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			c, err := env.configs.GetConfiguration("ec")
			if err == nil {
				got[i] = c
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NotNil(t, got[i])
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, 1, countEntries(env.hook, "built signing configuration", "configuration", "ec"))
}

func TestConfigFactory_CreateConfiguration(t *testing.T) {
	ecKey := generateECKey(t)

	tests := []struct {
		name       string
		asymmetric bool
		options    FactoryOptions
		wantErr    string
	}{
		{
			"symmetric",
			false,
			FactoryOptions{Signer: "HS256", SigningKey: testSecret},
			"",
		},
		{
			"asymmetric with verification key",
			true,
			FactoryOptions{Signer: "ES256", SigningKey: privatePEM(t, ecKey), VerificationKey: publicPEM(t, ecKey)},
			"",
		},
		{
			"asymmetric derives verification key",
			true,
			FactoryOptions{Signer: "ES256", SigningKey: privatePEM(t, ecKey)},
			"",
		},
		{
			"symmetric signer on asymmetric configuration",
			true,
			FactoryOptions{Signer: "HS256", SigningKey: privatePEM(t, ecKey)},
			`configuration "x": signer HS256 does not match asymmetric=true`,
		},
		{
			"missing signer",
			false,
			FactoryOptions{SigningKey: testSecret},
			`configuration "x": signer must be provided`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConfigFactory("x", tt.asymmetric, tt.options).CreateConfiguration(nil)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c.SigningKey())
			require.NotNil(t, c.VerificationKey())
			if !tt.asymmetric {
				assert.Same(t, c.SigningKey(), c.VerificationKey())
			}
		})
	}
}

func TestConfigFactory_injectedCollaboratorsWin(t *testing.T) {
	secret, err := jwk.FromRaw([]byte("an-injected-secret-an-injected-secret"))
	require.NoError(t, err)

	f := NewConfigFactory("x", false, FactoryOptions{Signer: "HS256", SigningKey: testSecret})
	f.SetSigner(AlgorithmSigner(jwa.HS384))
	f.SetSigningKey(secret)

	c, err := f.CreateConfiguration(nil)
	require.NoError(t, err)
	assert.Equal(t, jwa.HS384, c.Signer().Algorithm())
	assert.Same(t, secret, c.SigningKey())

	again, err := f.CreateConfiguration(nil)
	require.NoError(t, err)
	assert.Same(t, c.SigningKey(), again.SigningKey())
}

func TestSigningConfiguration_PublicKeys(t *testing.T) {
	env := setupManager(t, nil)

	ec, err := env.configs.GetConfiguration("ec")
	require.NoError(t, err)
	set, err := ec.PublicKeys()
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	key, ok := set.Key(0)
	require.True(t, ok)
	_, isPrivate := key.(jwk.ECDSAPrivateKey)
	assert.False(t, isPrivate)

	sym, err := env.configs.GetConfiguration("default")
	require.NoError(t, err)
	set, err = sym.PublicKeys()
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestConstraintViolation_Is(t *testing.T) {
	var err error = violation("has_claim", "undefined claim %q for token", "role")
	assert.True(t, errors.Is(err, ErrConstraintViolation))
	assert.EqualError(t, err, `has_claim: undefined claim "role" for token`)
}
