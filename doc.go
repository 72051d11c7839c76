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

// Package jwtkit issues and validates JSON Web Tokens by type.
//
// A ConfigRegistry holds named signing configurations: a signer, a
// signing key and a verification key.  A TypeRegistry holds token types,
// each of which decides what a new token contains and which constraints a
// parsed token must satisfy.  A Manager combines the two:
//
//	configs := jwtkit.NewConfigRegistry("default")
//	configs.AddConfigFactory(jwtkit.NewConfigFactory("default", false, jwtkit.FactoryOptions{
//		Signer:     "HS256",
//		SigningKey: secret,
//	}))
//	types := jwtkit.NewTypeRegistry(map[string]jwtkit.TypeOptions{
//		"session": {Exp: 3600},
//	})
//	manager := jwtkit.NewManager(configs, types)
//
//	tok, err := manager.Create("session", jwtkit.WithClaim("role", "admin"))
//	...
//	parsed, err := manager.ParseTokenWithClaims(tok.String(), "session", "role")
//
// Configurations and types are built lazily, once per name, and the
// registries and manager are safe for concurrent use.
package jwtkit
