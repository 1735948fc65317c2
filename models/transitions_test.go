package models

import (
	"testing"

	"github.com/thazinfarms/dairybooks_backend/utils"
)

func TestBatchTransitions(t *testing.T) {
	cases := []struct {
		from   BatchStatus
		to     BatchStatus
		action effectAction
	}{
		{BatchStatusPending, BatchStatusInProgress, effectActionNone},
		{BatchStatusPending, BatchStatusCompleted, effectActionApply},
		{BatchStatusPending, BatchStatusCancelled, effectActionReverse},
		{BatchStatusInProgress, BatchStatusCompleted, effectActionApply},
		{BatchStatusInProgress, BatchStatusCancelled, effectActionReverse},
		{BatchStatusCompleted, BatchStatusCancelled, effectActionReverse},
	}
	for _, c := range cases {
		action, err := nextBatchEffect("batch", 1, c.from, c.to)
		if err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", c.from, c.to, err)
		}
		if action != c.action {
			t.Fatalf("%s -> %s: expected action %d; got %d", c.from, c.to, c.action, action)
		}
	}
}

func TestBatchTransitionsRejected(t *testing.T) {
	rejected := []struct {
		from BatchStatus
		to   BatchStatus
	}{
		{BatchStatusCompleted, BatchStatusPending},
		{BatchStatusCompleted, BatchStatusInProgress},
		{BatchStatusCancelled, BatchStatusPending},
		{BatchStatusCancelled, BatchStatusCompleted},
		{BatchStatusInProgress, BatchStatusPending},
	}
	for _, c := range rejected {
		if _, err := nextBatchEffect("batch", 1, c.from, c.to); !utils.IsValidationError(err) {
			t.Fatalf("%s -> %s: expected validation error; got %v", c.from, c.to, err)
		}
	}

	// same-state is rejected, not a silent no-op
	if _, err := nextBatchEffect("batch", 1, BatchStatusPending, BatchStatusPending); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for same-state transition; got %v", err)
	}
}

func TestApprovalTransitions(t *testing.T) {
	action, err := nextApprovalEffect("invoice", 1, ApprovalStatusPending, ApprovalStatusApproved)
	if err != nil || action != effectActionApply {
		t.Fatalf("pending->approved: action=%d err=%v", action, err)
	}
	action, err = nextApprovalEffect("invoice", 1, ApprovalStatusPending, ApprovalStatusRejected)
	if err != nil || action != effectActionReverse {
		t.Fatalf("pending->rejected: action=%d err=%v", action, err)
	}
	action, err = nextApprovalEffect("invoice", 1, ApprovalStatusApproved, ApprovalStatusRejected)
	if err != nil || action != effectActionReverse {
		t.Fatalf("approved->rejected: action=%d err=%v", action, err)
	}

	if _, err := nextApprovalEffect("invoice", 1, ApprovalStatusRejected, ApprovalStatusApproved); !utils.IsValidationError(err) {
		t.Fatalf("rejected->approved: expected validation error; got %v", err)
	}
	if _, err := nextApprovalEffect("invoice", 1, ApprovalStatusApproved, ApprovalStatusApproved); !utils.IsValidationError(err) {
		t.Fatalf("approved->approved: expected validation error; got %v", err)
	}
}
