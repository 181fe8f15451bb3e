/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnixAuthorizer(t *testing.T) {
	perm := Perm{UID: 1000, GID: 100, CUID: 1500, CGID: 150, Mode: 0o640}
	auth := UnixAuthorizer{}

	tests := []struct {
		name string
		cred Credential
		want Access
		ok   bool
	}{
		{"owner read write", Credential{UID: 1000}, AccessReadWrite, true},
		{"creator counts as owner", Credential{UID: 1500}, AccessReadWrite, true},
		{"group read", Credential{UID: 7, GID: 100}, AccessRead, true},
		{"group write denied", Credential{UID: 7, GID: 100}, AccessWrite, false},
		{"creator group", Credential{UID: 7, GID: 1, Groups: []uint32{150}}, AccessRead, true},
		{"supplementary group", Credential{UID: 7, GID: 1, Groups: []uint32{5, 100}}, AccessRead, true},
		{"other denied", Credential{UID: 7, GID: 1}, AccessRead, false},
		{"root bypass", Credential{UID: 0, GID: 1}, AccessReadWrite, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, auth.Authorize(tt.cred, perm, tt.want))
		})
	}
}

func TestOwnerClassDecides(t *testing.T) {
	// an owner without read bits is denied even if others may read
	perm := Perm{UID: 1000, GID: 100, CUID: 1000, Mode: 0o044}
	assert.False(t, UnixAuthorizer{}.Authorize(Credential{UID: 1000, GID: 100}, perm, AccessRead))
	assert.True(t, UnixAuthorizer{}.Authorize(Credential{UID: 9, GID: 9}, perm, AccessRead))
}

func TestCanAdminister(t *testing.T) {
	perm := Perm{UID: 1000, CUID: 1500}
	assert.True(t, canAdminister(Credential{UID: 1000}, perm))
	assert.True(t, canAdminister(Credential{UID: 1500}, perm))
	assert.True(t, canAdminister(Credential{UID: 0}, perm))
	assert.False(t, canAdminister(Credential{UID: 7, GID: 0}, perm))
}

func TestAuthorizerFunc(t *testing.T) {
	var calls int
	f := AuthorizerFunc(func(Credential, Perm, Access) bool { calls++; return false })
	assert.False(t, f.Authorize(Credential{}, Perm{}, AccessRead))
	assert.Equal(t, 1, calls)
}
