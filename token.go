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
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Token is a decoded token.  Its payload has not been validated; that is
// the job of the constraints a TokenType supplies.
type Token interface {
	// String returns the compact serialization the token was decoded from.
	String() string
	// Header returns a protected header value.
	Header(name string) (interface{}, bool)
}

// PlainToken is a signed (JWS compact) token carrying a claim set.
type PlainToken struct {
	raw     []byte
	headers jws.Headers
	claims  jwt.Token
}

func (t *PlainToken) String() string {
	return string(t.raw)
}

// Header returns a protected header value.
func (t *PlainToken) Header(name string) (interface{}, bool) {
	return t.headers.Get(name)
}

// Headers returns the protected headers.
func (t *PlainToken) Headers() jws.Headers {
	return t.headers
}

// Claims returns the claim set.
func (t *PlainToken) Claims() jwt.Token {
	return t.claims
}

// Claim returns a single claim, registered or private.
func (t *PlainToken) Claim(name string) (interface{}, bool) {
	return t.claims.Get(name)
}

// HeaderMap returns the protected headers as a plain map.
func (t *PlainToken) HeaderMap() (map[string]interface{}, error) {
	return t.headers.AsMap(context.Background())
}

// ClaimMap returns the claim set as a plain map.
func (t *PlainToken) ClaimMap() (map[string]interface{}, error) {
	return t.claims.AsMap(context.Background())
}

// EncryptedToken is a JWE compact token.  Only its protected headers are
// readable without the content encryption key.
type EncryptedToken struct {
	raw     []byte
	headers jwe.Headers
}

func (t *EncryptedToken) String() string {
	return string(t.raw)
}

// Header returns a protected header value.
func (t *EncryptedToken) Header(name string) (interface{}, bool) {
	return t.headers.Get(name)
}

// decodeToken splits a compact serialization into its structured form
// without checking signatures or claim values.
func decodeToken(raw []byte) (Token, error) {
	raw = bytes.TrimSpace(raw)
	switch bytes.Count(raw, []byte{'.'}) {
	case 2:
		msg, err := jws.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		sigs := msg.Signatures()
		if len(sigs) != 1 {
			return nil, fmt.Errorf("%w: expected one signature, found %d", ErrMalformedToken, len(sigs))
		}
		claims, err := jwt.ParseInsecure(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return &PlainToken{
			raw:     raw,
			headers: sigs[0].ProtectedHeaders(),
			claims:  claims,
		}, nil
	case 4:
		msg, err := jwe.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return &EncryptedToken{
			raw:     raw,
			headers: msg.ProtectedHeaders(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected number of segments", ErrMalformedToken)
	}
}
