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
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TimeClock implements the jwt.Clock interface, allowing control over
// the interpretation of 'current time' used during validating and signing.
// If NowTime is let unset (0), time.Now() return value will be used.
// Unix time (in seconds).
//
// This is included to help test expiration and use before inception.
// NowTime may be changed with Set or Advance while the clock is in use.
type TimeClock struct {
	NowTime int64
}

var _ jwt.Clock = (*TimeClock)(nil)

// Now returns the pinned time, or time.Now() when NowTime is zero.
func (tc *TimeClock) Now() time.Time {
	if now := atomic.LoadInt64(&tc.NowTime); now != 0 {
		return time.Unix(now, 0)
	}
	return time.Now()
}

// Set pins the clock to the given Unix time.  Zero returns it to wall time.
func (tc *TimeClock) Set(unix int64) {
	atomic.StoreInt64(&tc.NowTime, unix)
}

// Advance moves a pinned clock forward by d.
func (tc *TimeClock) Advance(d time.Duration) {
	atomic.AddInt64(&tc.NowTime, int64(d/time.Second))
}

func nowFromClock(clock jwt.Clock) time.Time {
	if clock == nil {
		return time.Now()
	}
	return clock.Now()
}
