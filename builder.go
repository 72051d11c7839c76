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
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Builder accumulates claims and headers for a token before signing.
// Setters overwrite earlier values for the same name.  The first error
// encountered is kept and returned when the token is signed.
type Builder struct {
	clock   jwt.Clock
	claims  jwt.Token
	headers jws.Headers
	err     error
}

func newBuilder(clock jwt.Clock) *Builder {
	return &Builder{
		clock:   clock,
		claims:  jwt.New(),
		headers: jws.NewHeaders(),
	}
}

// Now returns the current time according to the builder's clock.
func (b *Builder) Now() time.Time {
	return nowFromClock(b.clock)
}

// Err returns the first error encountered while building.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) setClaim(name string, value interface{}) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.claims.Set(name, value); err != nil {
		b.err = fmt.Errorf("claim %q: %w", name, err)
	}
	return b
}

// WithClaim sets a claim.
func (b *Builder) WithClaim(name string, value interface{}) *Builder {
	return b.setClaim(name, value)
}

// WithHeader sets a protected header.  "alg" is always replaced by the
// signer's algorithm when signing.
func (b *Builder) WithHeader(name string, value interface{}) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.headers.Set(name, value); err != nil {
		b.err = fmt.Errorf("header %q: %w", name, err)
	}
	return b
}

// IssuedBy sets "iss".
func (b *Builder) IssuedBy(issuer string) *Builder {
	return b.setClaim(jwt.IssuerKey, issuer)
}

// IdentifiedBy sets "jti".
func (b *Builder) IdentifiedBy(id string) *Builder {
	return b.setClaim(jwt.JwtIDKey, id)
}

// RelatedTo sets "sub".
func (b *Builder) RelatedTo(subject string) *Builder {
	return b.setClaim(jwt.SubjectKey, subject)
}

// PermittedFor adds audiences to "aud".
func (b *Builder) PermittedFor(audiences ...string) *Builder {
	aud := b.claims.Audience()
	for _, a := range audiences {
		if !containsString(aud, a) {
			aud = append(aud, a)
		}
	}
	return b.setClaim(jwt.AudienceKey, aud)
}

// IssuedAt sets "iat".
func (b *Builder) IssuedAt(t time.Time) *Builder {
	return b.setClaim(jwt.IssuedAtKey, t)
}

// CanOnlyBeUsedAfter sets "nbf".
func (b *Builder) CanOnlyBeUsedAfter(t time.Time) *Builder {
	return b.setClaim(jwt.NotBeforeKey, t)
}

// ExpiresAt sets "exp".
func (b *Builder) ExpiresAt(t time.Time) *Builder {
	return b.setClaim(jwt.ExpirationKey, t)
}

// Sign signs the accumulated token with the given signer and key.
func (b *Builder) Sign(signer Signer, key jwk.Key) (*PlainToken, error) {
	if b.err != nil {
		return nil, b.err
	}
	if key == nil {
		return nil, fmt.Errorf("signing key not set")
	}

	signed, err := jwt.Sign(b.claims, jwt.WithKey(signer.Algorithm(), key, jws.WithProtectedHeaders(b.headers)))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	tok, err := decodeToken(signed)
	if err != nil {
		return nil, err
	}
	return tok.(*PlainToken), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
