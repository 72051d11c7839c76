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
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
)

func TestTimeClock_Now(t *testing.T) {
	type fields struct {
		NowTime int64
	}
	tests := []struct {
		name   string
		fields fields
		want   time.Time
	}{
		{
			"default",
			fields{},
			time.Now(),
		},
		{
			"locked clock to 50",
			fields{50},
			time.Unix(50, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &TimeClock{
				NowTime: tt.fields.NowTime,
			}
			got := tc.Now()
			if !timeEqualsEpsilon(tt.want, got, 1*time.Second) {
				t.Errorf("TimeClock.Now() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeClock_SetAdvance(t *testing.T) {
	tc := &TimeClock{}
	tc.Set(1000)
	assert.Equal(t, time.Unix(1000, 0), tc.Now())
	tc.Advance(90 * time.Second)
	assert.Equal(t, time.Unix(1090, 0), tc.Now())
	tc.Set(0)
	assert.True(t, timeEqualsEpsilon(time.Now(), tc.Now(), time.Second))
}

func timeEqualsEpsilon(want time.Time, got time.Time, fudge time.Duration) bool {
	return got.Unix() >= want.Add(-fudge).Unix() && got.Unix() <= want.Add(fudge).Unix()
}

func Test_nowFromClock(t *testing.T) {
	type args struct {
		clock jwt.Clock
	}
	tests := []struct {
		name string
		args args
		want time.Time
	}{
		{"nil", args{nil}, time.Now()},
		{"set at 50", args{&TimeClock{50}}, time.Unix(50, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nowFromClock(tt.args.clock)
			if !timeEqualsEpsilon(tt.want, got, 1*time.Second) {
				t.Errorf("nowFromClock() = %v, want %v", got, tt.want)
			}
		})
	}
}
