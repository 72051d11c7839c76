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
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Signer selects the JWS algorithm a SigningConfiguration signs and
// verifies with.  The cryptography itself is performed by jwx using the
// configuration's keys.
type Signer interface {
	Algorithm() jwa.SignatureAlgorithm
}

// AlgorithmSigner is a Signer for a fixed algorithm.
type AlgorithmSigner jwa.SignatureAlgorithm

// Algorithm returns the algorithm.
func (s AlgorithmSigner) Algorithm() jwa.SignatureAlgorithm {
	return jwa.SignatureAlgorithm(s)
}

func (s AlgorithmSigner) String() string {
	return string(s)
}

var symmetricAlgorithms = map[jwa.SignatureAlgorithm]bool{
	jwa.HS256: true,
	jwa.HS384: true,
	jwa.HS512: true,
}

// IsSymmetric reports whether the signer uses a shared secret.
func IsSymmetric(s Signer) bool {
	return symmetricAlgorithms[s.Algorithm()]
}

// SignerFor returns the Signer named by an algorithm identifier such
// as "HS256" or "ES256".  "none" is never accepted.
func SignerFor(name string) (Signer, error) {
	if len(name) == 0 {
		return nil, fmt.Errorf("signer must be provided")
	}
	var alg jwa.SignatureAlgorithm
	if err := alg.Accept(name); err != nil {
		return nil, fmt.Errorf("unsupported signer %q: %w", name, err)
	}
	if alg == jwa.NoSignature {
		return nil, fmt.Errorf("unsupported signer %q", name)
	}
	return AlgorithmSigner(alg), nil
}

// NewKey builds key material from raw content.  Symmetric content is used
// verbatim as an octet secret.  Asymmetric content may be a JWK JSON
// document or PEM; a passphrase decrypts legacy encrypted PEM blocks.
func NewKey(content string, passphrase string, symmetric bool) (jwk.Key, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("key content is empty")
	}

	if symmetric {
		return jwk.FromRaw([]byte(content))
	}

	data := bytes.TrimSpace([]byte(content))
	if len(data) == 0 {
		return nil, fmt.Errorf("key content is empty")
	}
	if data[0] == '{' {
		return jwk.ParseKey(data)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("key content is neither PEM nor JWK")
	}

	//lint:ignore SA1019 legacy RFC 1423 encrypted keys are still accepted
	if x509.IsEncryptedPEMBlock(block) {
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("key is encrypted and no passphrase was provided")
		}
		//lint:ignore SA1019 see above
		der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key: %w", err)
		}
		data = pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der})
	}

	return jwk.ParseKey(data, jwk.WithPEM(true))
}
