package payments

import "testing"

func headerMap(headers map[string]string) HeaderGetter {
	return func(name string) string {
		return headers[name]
	}
}

func TestExtractTokenBearer(t *testing.T) {
	token, err := ExtractToken(headerMap(map[string]string{
		"Authorization": "Bearer abc123",
	}))
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if token != "abc123" {
		t.Errorf("expected abc123, got %q", token)
	}
}

func TestExtractTokenRawAuthorization(t *testing.T) {
	token, err := ExtractToken(headerMap(map[string]string{
		"Authorization": "abc123",
	}))
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if token != "abc123" {
		t.Errorf("expected abc123, got %q", token)
	}
}

func TestExtractTokenPaymentHeaderFallback(t *testing.T) {
	token, err := ExtractToken(headerMap(map[string]string{
		"X-Payment-Token": "tok-2",
	}))
	if err != nil {
		t.Fatalf("ExtractToken: %v", err)
	}
	if token != "tok-2" {
		t.Errorf("expected tok-2, got %q", token)
	}
}

func TestExtractTokenMissing(t *testing.T) {
	_, err := ExtractToken(headerMap(nil))
	if ErrorCode(err) != ErrCodeUnauthenticated {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestDecodeTokenHints(t *testing.T) {
	token := unsignedJWT(map[string]interface{}{
		"planId":       "plan-7",
		"payerAddress": "0xabc",
	})

	hints := DecodeTokenHints(token)
	if hints.PlanID != "plan-7" {
		t.Errorf("expected plan-7, got %q", hints.PlanID)
	}
	if hints.PayerAddress != "0xabc" {
		t.Errorf("expected 0xabc, got %q", hints.PayerAddress)
	}
}

func TestDecodeTokenHintsSubFallback(t *testing.T) {
	token := unsignedJWT(map[string]interface{}{"sub": "0xdef"})

	hints := DecodeTokenHints(token)
	if hints.PayerAddress != "0xdef" {
		t.Errorf("expected sub fallback, got %q", hints.PayerAddress)
	}
}

func TestDecodeTokenHintsNotAJWT(t *testing.T) {
	hints := DecodeTokenHints("opaque-token")
	if hints != (TokenHints{}) {
		t.Errorf("non-JWT tokens must yield empty hints, got %+v", hints)
	}
}
