package models

import "github.com/thazinfarms/dairybooks_backend/utils"

// effectAction is what a status transition does to the ledger.
type effectAction int

const (
	// effectActionNone: pure status change, never touches the ledger.
	effectActionNone effectAction = iota
	// effectActionApply: posts the document's full ledger effect.
	// Rejected with a conflict when the effect is already applied.
	effectActionApply
	// effectActionReverse: undoes a previously applied effect with inverted
	// signs from the originally recorded quantities and costs. A no-op
	// status change when no effect was applied.
	effectActionReverse
)

type batchTransition struct {
	From BatchStatus
	To   BatchStatus
}

// batchTransitionTable is the closed set of legal processing-batch moves.
// Anything not listed here is an invalid transition.
var batchTransitionTable = map[batchTransition]effectAction{
	{BatchStatusPending, BatchStatusInProgress}:   effectActionNone,
	{BatchStatusPending, BatchStatusCompleted}:    effectActionApply,
	{BatchStatusPending, BatchStatusCancelled}:    effectActionReverse,
	{BatchStatusInProgress, BatchStatusCompleted}: effectActionApply,
	{BatchStatusInProgress, BatchStatusCancelled}: effectActionReverse,
	{BatchStatusCompleted, BatchStatusCancelled}:  effectActionReverse,
}

func nextBatchEffect(entity string, id int, from BatchStatus, to BatchStatus) (effectAction, error) {
	if from == to {
		return effectActionNone, utils.NewValidationError("%s %d is already %s", entity, id, from)
	}
	action, ok := batchTransitionTable[batchTransition{From: from, To: to}]
	if !ok {
		return effectActionNone, utils.NewValidationError("%s %d: invalid transition %s -> %s", entity, id, from, to)
	}
	return action, nil
}

type approvalTransition struct {
	From ApprovalStatus
	To   ApprovalStatus
}

// approvalTransitionTable covers invoice-like documents: sales invoices,
// purchase bills and inventory write-offs.
var approvalTransitionTable = map[approvalTransition]effectAction{
	{ApprovalStatusPending, ApprovalStatusApproved}:  effectActionApply,
	{ApprovalStatusPending, ApprovalStatusRejected}:  effectActionReverse,
	{ApprovalStatusApproved, ApprovalStatusRejected}: effectActionReverse,
}

func nextApprovalEffect(entity string, id int, from ApprovalStatus, to ApprovalStatus) (effectAction, error) {
	if from == to {
		return effectActionNone, utils.NewValidationError("%s %d is already %s", entity, id, from)
	}
	action, ok := approvalTransitionTable[approvalTransition{From: from, To: to}]
	if !ok {
		return effectActionNone, utils.NewValidationError("%s %d: invalid transition %s -> %s", entity, id, from, to)
	}
	return action, nil
}
