package payments

import "context"

// Verifier checks entitlement against the facilitator before any
// execution step begins.
type Verifier struct {
	facilitator FacilitatorClient
}

// NewVerifier creates a verifier backed by the given facilitator
// client.
func NewVerifier(facilitator FacilitatorClient) *Verifier {
	return &Verifier{facilitator: facilitator}
}

// Verify calls the facilitator. A transport failure is reported as an
// invalid result with a generic reason; retries are the caller's
// responsibility, never this component's.
//
// The caller must have already established that a token exists: on a
// missing token the verifier is not called at all.
func (v *Verifier) Verify(ctx context.Context, requirement PaymentRequirement, token string, maxAmount int64) *VerificationResult {
	result, err := v.facilitator.Verify(ctx, requirement, token, maxAmount)
	if err != nil || result == nil {
		return &VerificationResult{
			IsValid:       false,
			InvalidReason: "verification failed",
		}
	}
	return result
}
