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

package cli

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/spf13/cobra"

	"github.com/skandragon/jwtkit"
)

// NewKeygenCmd creates the keygen command.
func NewKeygenCmd() *cobra.Command {
	var (
		alg    string
		format string
		kid    string
		public bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key for a signing configuration",
		Long: `Generate a key suitable for the given signer.

Symmetric signers produce a random hex secret.  Asymmetric signers produce
a PKCS#8 PEM private key, or a JWK with --format jwk.  --public prints the
public half instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := jwtkit.SignerFor(alg)
			if err != nil {
				return err
			}
			if kid == "" {
				kid = uuid.NewString()
			}
			out, err := generateKey(signer, format, kid, public)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&alg, "alg", "ES256", "signer the key is for")
	cmd.Flags().StringVar(&format, "format", "pem", "output format (pem, jwk)")
	cmd.Flags().StringVar(&kid, "kid", "", "key ID for JWK output (default: random UUID)")
	cmd.Flags().BoolVar(&public, "public", false, "print only the public key")
	return cmd
}

func generateKey(signer jwtkit.Signer, format string, kid string, public bool) (string, error) {
	if format != "pem" && format != "jwk" {
		return "", fmt.Errorf("unsupported key format %q", format)
	}

	alg := signer.Algorithm()
	if jwtkit.IsSymmetric(signer) {
		if public {
			return "", fmt.Errorf("signer %s has no public key", alg)
		}
		secret, err := randomSecret(alg)
		if err != nil {
			return "", err
		}
		if format == "pem" {
			return secret + "\n", nil
		}
		key, err := jwtkit.NewKey(secret, "", true)
		if err != nil {
			return "", err
		}
		return marshalJWK(key, alg, kid)
	}

	private, err := newPrivateKey(alg)
	if err != nil {
		return "", err
	}
	key, err := jwk.FromRaw(private)
	if err != nil {
		return "", err
	}
	if public {
		if key, err = jwk.PublicKeyOf(key); err != nil {
			return "", err
		}
	}

	if format == "jwk" {
		return marshalJWK(key, alg, kid)
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return "", err
	}
	if public {
		der, err := x509.MarshalPKIXPublicKey(raw)
		if err != nil {
			return "", err
		}
		return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
	}
	der, err := x509.MarshalPKCS8PrivateKey(raw)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

func randomSecret(alg jwa.SignatureAlgorithm) (string, error) {
	size := 32
	switch alg {
	case jwa.HS384:
		size = 48
	case jwa.HS512:
		size = 64
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func newPrivateKey(alg jwa.SignatureAlgorithm) (crypto.Signer, error) {
	switch alg {
	case jwa.RS256, jwa.RS384, jwa.RS512, jwa.PS256, jwa.PS384, jwa.PS512:
		return rsa.GenerateKey(rand.Reader, 2048)
	case jwa.ES256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case jwa.ES384:
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case jwa.ES512:
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case jwa.EdDSA:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	default:
		return nil, fmt.Errorf("cannot generate a key for signer %s", alg)
	}
}

func marshalJWK(key jwk.Key, alg jwa.SignatureAlgorithm, kid string) (string, error) {
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return "", err
	}
	if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
