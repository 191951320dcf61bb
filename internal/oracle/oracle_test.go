package oracle

import "testing"

func TestHMACSignatureOracle(t *testing.T) {
	o := NewHMACSignatureOracle("test-secret")

	proof := o.Sign("wallet-1", "start-session")
	if !o.VerifyOwnership("wallet-1", "start-session", proof) {
		t.Error("valid proof rejected")
	}
	if o.VerifyOwnership("wallet-2", "start-session", proof) {
		t.Error("proof accepted for a different identity")
	}
	if o.VerifyOwnership("wallet-1", "other-message", proof) {
		t.Error("proof accepted for a different message")
	}
	if o.VerifyOwnership("wallet-1", "start-session", proof+"00") {
		t.Error("mangled proof accepted")
	}

	other := NewHMACSignatureOracle("other-secret")
	if other.VerifyOwnership("wallet-1", "start-session", proof) {
		t.Error("proof accepted under a different secret")
	}
}

func TestAcceptAllPayments(t *testing.T) {
	var o AcceptAllPayments
	if !o.VerifyPayment("tx-1", "wallet-1", 100) {
		t.Error("non-empty proof rejected")
	}
	if o.VerifyPayment("", "wallet-1", 100) {
		t.Error("empty proof accepted")
	}
}
