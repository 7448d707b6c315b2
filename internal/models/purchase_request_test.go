// internal/models/purchase_request_test.go
package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTerminalStates(t *testing.T) {
	terminal := []RequestStatus{
		StatusCompleted,
		StatusSellerDeclinedInterest,
		StatusBuyerWithdrewInterest,
		StatusSellerRejected,
		StatusPaymentFailed,
		StatusAbortedProjectUnavailable,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	active := []RequestStatus{
		StatusInterestExpressed,
		StatusTermsProposed,
		StatusAgreementReached,
		StatusPaymentProcessing,
		StatusPaymentCompleted,
		StatusTransferInProgress,
		StatusAssetsTransferred,
	}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestNoTransitionLeavesTerminalState(t *testing.T) {
	all := append(NonTerminalStatuses(),
		StatusCompleted,
		StatusSellerDeclinedInterest,
		StatusBuyerWithdrewInterest,
		StatusSellerRejected,
		StatusPaymentFailed,
		StatusAbortedProjectUnavailable,
	)

	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to),
				"terminal state %s must not transition to %s", from, to)
		}
	}
}

func TestForwardOnlyTransitions(t *testing.T) {
	// No path ever returns to negotiation once payment started.
	prePayment := []RequestStatus{StatusInterestExpressed, StatusTermsProposed, StatusAgreementReached}
	postPayment := []RequestStatus{
		StatusPaymentProcessing,
		StatusPaymentCompleted,
		StatusTransferInProgress,
		StatusAssetsTransferred,
		StatusCompleted,
	}

	for _, from := range postPayment {
		for _, to := range prePayment {
			assert.False(t, from.CanTransitionTo(to),
				"%s must not move back to %s", from, to)
		}
	}
}

func TestTransferInProgressAllowsRepeatedUpdates(t *testing.T) {
	assert.True(t, StatusTransferInProgress.CanTransitionTo(StatusTransferInProgress))
}

func TestPaymentCompletedReachableFromBothPendingStates(t *testing.T) {
	sources := TransitionSources(StatusPaymentCompleted)
	assert.ElementsMatch(t, []RequestStatus{StatusAgreementReached, StatusPaymentProcessing}, sources)
}

func TestOtherParty(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()
	request := &PurchaseRequest{BuyerID: buyer, SellerID: seller}

	assert.Equal(t, seller, request.OtherParty(buyer))
	assert.Equal(t, buyer, request.OtherParty(seller))

	assert.True(t, request.IsParty(buyer))
	assert.True(t, request.IsParty(seller))
	assert.False(t, request.IsParty(uuid.New()))
}
