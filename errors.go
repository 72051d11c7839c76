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
	"strings"
)

var (
	// ErrUnknownConfiguration is returned when a signing configuration
	// name has no registered factory.
	ErrUnknownConfiguration = errors.New("unknown configuration")

	// ErrUnknownType is returned when a token type name is neither
	// registered, declared, nor present in the type catalog.
	ErrUnknownType = errors.New("unknown token type")

	// ErrMalformedToken is returned when a token string cannot be decoded.
	ErrMalformedToken = errors.New("malformed token")

	// ErrConstraintViolation matches any *ConstraintViolation with errors.Is.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidTokenType is returned when a token is not of the structural
	// kind required, such as an encrypted token where a plain one was needed.
	ErrInvalidTokenType = errors.New("invalid token type")
)

// ConstraintViolation reports a failed validation rule.  Constraint names
// the first rule that failed; Others holds any further failures found while
// evaluating the same batch.
type ConstraintViolation struct {
	Constraint string
	Reason     string
	Others     []*ConstraintViolation
}

func violation(constraint string, format string, args ...interface{}) *ConstraintViolation {
	return &ConstraintViolation{
		Constraint: constraint,
		Reason:     fmt.Sprintf(format, args...),
	}
}

func (e *ConstraintViolation) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Constraint, e.Reason)
	if len(e.Others) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Others))
	for _, o := range e.Others {
		parts = append(parts, o.Constraint)
	}
	return fmt.Sprintf("%s (also failed: %s)", msg, strings.Join(parts, ", "))
}

// Is allows errors.Is(err, ErrConstraintViolation).
func (e *ConstraintViolation) Is(target error) bool {
	return target == ErrConstraintViolation
}
