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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func generateECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func privatePEM(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func publicPEM(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func quietLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// countEntries counts logged entries with message msg and field key=value.
func countEntries(hook *test.Hook, msg string, key string, value string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Message == msg && e.Data[key] == value {
			n++
		}
	}
	return n
}

type testEnv struct {
	clock   *TimeClock
	configs *ConfigRegistry
	types   *TypeRegistry
	manager *Manager
	hook    *test.Hook
	ecKey   *ecdsa.PrivateKey
}

// setupManager builds a manager with a symmetric "default" configuration
// and an asymmetric "ec" configuration, both on a clock pinned to 1000000.
func setupManager(t *testing.T, declared map[string]TypeOptions) *testEnv {
	t.Helper()
	logger, hook := quietLogger()
	clock := &TimeClock{NowTime: 1000000}
	ecKey := generateECKey(t)

	configs := NewConfigRegistry("default", WithClock(clock), WithLogger(logger))
	configs.AddConfigFactory(NewConfigFactory("default", false, FactoryOptions{
		Signer:     "HS256",
		SigningKey: testSecret,
	}))
	configs.AddConfigFactory(NewConfigFactory("ec", true, FactoryOptions{
		Signer:          "ES256",
		SigningKey:      privatePEM(t, ecKey),
		VerificationKey: publicPEM(t, ecKey),
	}))

	types := NewTypeRegistry(declared, WithLogger(logger))
	return &testEnv{
		clock:   clock,
		configs: configs,
		types:   types,
		manager: NewManager(configs, types, WithLogger(logger)),
		hook:    hook,
		ecKey:   ecKey,
	}
}
