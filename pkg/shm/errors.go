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
	"errors"
	"syscall"
)

//go:generate go tool stringer -type=Kind -trimprefix=Kind

// Kind is the closed set of failures the manager reports.
type Kind int

const (
	KindInvalid Kind = iota + 1
	KindNotFound
	KindExists
	KindNoMemory
	KindNoSpace
	KindAccess
	KindPermission
	KindTooMany
)

var kindErrno = map[Kind]syscall.Errno{
	KindInvalid:    syscall.EINVAL,
	KindNotFound:   syscall.ENOENT,
	KindExists:     syscall.EEXIST,
	KindNoMemory:   syscall.ENOMEM,
	KindNoSpace:    syscall.ENOSPC,
	KindAccess:     syscall.EACCES,
	KindPermission: syscall.EPERM,
	KindTooMany:    syscall.EMFILE,
}

// Errno translates k for a syscall layer. Unknown kinds map to EINVAL.
func (k Kind) Errno() syscall.Errno {
	if e, ok := kindErrno[k]; ok {
		return e
	}
	return syscall.EINVAL
}

func (k Kind) Error() string { return k.Errno().Error() }

// Is lets errors.Is match a Kind against its syscall.Errno.
func (k Kind) Is(target error) bool {
	e, ok := target.(syscall.Errno)
	return ok && e == k.Errno()
}

// Error is returned by every Manager operation.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause, so errors.Is(err, KindExists) works.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// KindOf returns the Kind carried by err, or 0 when err is not a manager error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return 0
}

var (
	errClosed       = errors.New("manager closed")
	errStale        = errors.New("stale or unknown segment id")
	errForeign      = errors.New("consumer belongs to another manager")
	errNotAttached  = errors.New("no segment attached at address")
	errUnaligned    = errors.New("address not page aligned")
	errChildInUse   = errors.New("child consumer already has attachments")
	errConsumerGone = errors.New("consumer has exited")
)
