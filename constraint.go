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
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Constraint is a single, independently evaluable validation rule.
type Constraint interface {
	// Name identifies the rule in a ConstraintViolation.
	Name() string
	// Assert returns a *ConstraintViolation when the token breaks the rule.
	Assert(tok Token) error
}

// Assert evaluates every constraint against tok.  If any fail, the first
// failure is returned with the remaining failures attached to it.
func Assert(tok Token, constraints ...Constraint) error {
	var first *ConstraintViolation
	for _, c := range constraints {
		err := c.Assert(tok)
		if err == nil {
			continue
		}
		var v *ConstraintViolation
		if !errors.As(err, &v) {
			v = violation(c.Name(), "%v", err)
		}
		if first == nil {
			first = v
			continue
		}
		first.Others = append(first.Others, v)
	}
	if first == nil {
		return nil
	}
	return first
}

func plain(name string, tok Token) (*PlainToken, error) {
	pt, ok := tok.(*PlainToken)
	if !ok {
		return nil, violation(name, "token is not a signed token")
	}
	return pt, nil
}

type signedWith struct {
	signer Signer
	key    jwk.Key
}

// SignedWith requires the token to be signed with the signer's algorithm
// and to verify under key.
func SignedWith(signer Signer, key jwk.Key) Constraint {
	return &signedWith{signer: signer, key: key}
}

func (c *signedWith) Name() string { return "signed_with" }

func (c *signedWith) Assert(tok Token) error {
	pt, err := plain(c.Name(), tok)
	if err != nil {
		return err
	}
	if c.key == nil {
		return violation(c.Name(), "verification key not set")
	}
	alg := pt.headers.Algorithm()
	if alg != c.signer.Algorithm() {
		return violation(c.Name(), "token signed with %q, expected %q", alg, c.signer.Algorithm())
	}
	if _, err := jws.Verify(pt.raw, jws.WithKey(alg, c.key)); err != nil {
		return violation(c.Name(), "signature verification failed")
	}
	return nil
}

type looseValidAt struct {
	clock  jwt.Clock
	leeway time.Duration
}

// LooseValidAt requires "iat", "nbf" and "exp", when present, to be
// consistent with the clock's current time, allowing leeway either way.
func LooseValidAt(clock jwt.Clock, leeway time.Duration) Constraint {
	if clock == nil {
		clock = &TimeClock{}
	}
	return &looseValidAt{clock: clock, leeway: leeway}
}

func (c *looseValidAt) Name() string { return "valid_at" }

func (c *looseValidAt) Assert(tok Token) error {
	pt, err := plain(c.Name(), tok)
	if err != nil {
		return err
	}
	if err := jwt.Validate(pt.claims, jwt.WithClock(c.clock), jwt.WithAcceptableSkew(c.leeway)); err != nil {
		return violation(c.Name(), "%v", err)
	}
	return nil
}

type relatedTo string

// RelatedTo requires "sub" to equal subject.
func RelatedTo(subject string) Constraint { return relatedTo(subject) }

func (c relatedTo) Name() string { return "related_to" }

func (c relatedTo) Assert(tok Token) error {
	pt, err := plain(c.Name(), tok)
	if err != nil {
		return err
	}
	if got := pt.claims.Subject(); got != string(c) {
		return violation(c.Name(), "subject %q does not match %q", got, string(c))
	}
	return nil
}

type permittedFor string

// PermittedFor requires "aud" to contain audience.
func PermittedFor(audience string) Constraint { return permittedFor(audience) }

func (c permittedFor) Name() string { return "permitted_for" }

func (c permittedFor) Assert(tok Token) error {
	pt, err := plain(c.Name(), tok)
	if err != nil {
		return err
	}
	if !containsString(pt.claims.Audience(), string(c)) {
		return violation(c.Name(), "audience %q not permitted", string(c))
	}
	return nil
}

type issuedBy []string

// IssuedBy requires "iss" to be one of issuers.
func IssuedBy(issuers ...string) Constraint { return issuedBy(issuers) }

func (c issuedBy) Name() string { return "issued_by" }

func (c issuedBy) Assert(tok Token) error {
	pt, err := plain(c.Name(), tok)
	if err != nil {
		return err
	}
	if got := pt.claims.Issuer(); !containsString(c, got) {
		return violation(c.Name(), "issuer %q is not expected", got)
	}
	return nil
}

type identifiedBy string

// IdentifiedBy requires "jti" to equal id.
func IdentifiedBy(id string) Constraint { return identifiedBy(id) }

func (c identifiedBy) Name() string { return "identified_by" }

func (c identifiedBy) Assert(tok Token) error {
	pt, err := plain(c.Name(), tok)
	if err != nil {
		return err
	}
	if got := pt.claims.JwtID(); got != string(c) {
		return violation(c.Name(), "id %q does not match %q", got, string(c))
	}
	return nil
}

type hasClaim string

// HasClaim requires the claim set to contain name.
func HasClaim(name string) Constraint { return hasClaim(name) }

func (c hasClaim) Name() string { return "has_claim" }

func (c hasClaim) Assert(tok Token) error {
	pt, err := plain(c.Name(), tok)
	if err != nil {
		return err
	}
	if _, ok := pt.claims.Get(string(c)); !ok {
		return violation(c.Name(), "undefined claim %q for token", string(c))
	}
	return nil
}
