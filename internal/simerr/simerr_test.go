// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package simerr

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindConnState, "not connected")
	if err.Error() != "not connected" {
		t.Errorf("expected 'not connected', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "accept failed")
	if wrapped.Error() != "accept failed: not connected" {
		t.Errorf("expected 'accept failed: not connected', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindConnState, "not connected")
	if GetKind(err) != KindConnState {
		t.Errorf("expected KindConnState, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindConnState, "not connected")
	err = Attr(err, "fd", 4)
	err = Attr(err, "syscall", "recv")

	attrs := GetAttributes(err)
	if attrs["fd"] != 4 {
		t.Errorf("expected 4, got %v", attrs["fd"])
	}
	if attrs["syscall"] != "recv" {
		t.Errorf("expected recv, got %v", attrs["syscall"])
	}

	wrapped := Wrap(err, KindInternal, "failed")
	wrapped = Attr(wrapped, "operation", "read")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["fd"] != 4 || allAttrs["operation"] != "read" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}

func TestSentinelsAreConnState(t *testing.T) {
	for _, e := range []error{ErrNotConnected, ErrIsListening, ErrAlreadyConnected, ErrInProgress, ErrInvalidState, ErrStreamClosed} {
		if GetKind(e) != KindConnState {
			t.Errorf("expected KindConnState for %v, got %v", e, GetKind(e))
		}
	}
	if GetKind(ErrResetReceived) != KindPeerDriven {
		t.Errorf("expected KindPeerDriven for ErrResetReceived")
	}
	if GetKind(ErrTimedOut) != KindTimeDriven {
		t.Errorf("expected KindTimeDriven for ErrTimedOut")
	}
	if GetKind(ErrWouldBlock) != KindResource {
		t.Errorf("expected KindResource for ErrWouldBlock")
	}
}
