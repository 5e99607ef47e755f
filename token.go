package payments

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Header containers checked for the payment token, in order.
const (
	AuthorizationHeader = "Authorization"
	PaymentTokenHeader  = "X-Payment-Token"
)

// HeaderGetter returns the value of a request header, "" if absent.
// It abstracts the transport-specific header container (HTTP headers,
// gateway event maps, MCP _meta) from token extraction.
type HeaderGetter func(name string) string

// ExtractToken pulls the bearer token out of the request headers.
// Returns an unauthenticated error when no token is present; the
// verifier must never be called in that case.
func ExtractToken(getHeader HeaderGetter) (string, error) {
	if auth := getHeader(AuthorizationHeader); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer "), nil
		}
		return auth, nil
	}

	if token := getHeader(PaymentTokenHeader); token != "" {
		return token, nil
	}

	// Extraction has no requirement in scope; Authorize attaches it
	// when it rejects the empty token.
	return "", &PaymentError{Code: ErrCodeUnauthenticated, Message: "payment token is required"}
}

// DecodeTokenHints parses the token as a JWT without verifying its
// signature and extracts routing hints. The token is never
// authenticated locally; entitlement is established only by the
// facilitator's Verify call. A token that is not a JWT yields empty
// hints, not an error.
func DecodeTokenHints(token string) TokenHints {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return TokenHints{}
	}

	hints := TokenHints{}
	if planID, ok := claims["planId"].(string); ok {
		hints.PlanID = planID
	}
	if payer, ok := claims["payerAddress"].(string); ok {
		hints.PayerAddress = payer
	} else if sub, ok := claims["sub"].(string); ok {
		hints.PayerAddress = sub
	}
	return hints
}
