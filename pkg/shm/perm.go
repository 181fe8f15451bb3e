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

import "slices"

// Credential identifies the caller of an operation.
type Credential struct {
	UID    uint32
	GID    uint32
	Groups []uint32
	PID    int32
}

// Privileged reports whether c bypasses permission checks.
func (c Credential) Privileged() bool { return c.UID == 0 }

// InGroup reports whether gid is c's primary or a supplementary group.
func (c Credential) InGroup(gid uint32) bool {
	return c.GID == gid || slices.Contains(c.Groups, gid)
}

// Perm is the ownership and access metadata of a segment.
type Perm struct {
	Key  Key
	UID  uint32
	GID  uint32
	CUID uint32
	CGID uint32
	Mode Mode
	Seq  uint16
}

// Access is a requested data access, expressed in the "other" bit position.
type Access uint8

const (
	AccessWrite Access = 0o2
	AccessRead  Access = 0o4

	AccessReadWrite = AccessRead | AccessWrite
)

// accessFromMode extracts the owner-position bits of a requested mode.
func accessFromMode(m Mode) Access {
	return Access((m >> 6) & 0o7)
}

// Authorizer decides whether a credential may access a segment.
type Authorizer interface {
	Authorize(cred Credential, perm Perm, want Access) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(cred Credential, perm Perm, want Access) bool

func (f AuthorizerFunc) Authorize(cred Credential, perm Perm, want Access) bool {
	return f(cred, perm, want)
}

// UnixAuthorizer applies owner, group and other permission classes, in that
// order, with a privileged bypass. The first matching class decides.
type UnixAuthorizer struct{}

func (UnixAuthorizer) Authorize(cred Credential, perm Perm, want Access) bool {
	if cred.Privileged() {
		return true
	}
	m := perm.Mode & ModePerm
	var granted Access
	switch {
	case cred.UID == perm.UID || cred.UID == perm.CUID:
		granted = Access(m>>6) & 0o7
	case cred.InGroup(perm.GID) || cred.InGroup(perm.CGID):
		granted = Access(m>>3) & 0o7
	default:
		granted = Access(m) & 0o7
	}
	return granted&want == want
}

// canAdminister is the IPC_SET / IPC_RMID check.
func canAdminister(cred Credential, perm Perm) bool {
	return cred.Privileged() || cred.UID == perm.UID || cred.UID == perm.CUID
}
