// Package oracle defines the external verification collaborators the game
// core consumes as pass/fail checks: wallet ownership and payment proofs.
package oracle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureOracle verifies that a proof demonstrates control of an identity
// over a given message.
type SignatureOracle interface {
	VerifyOwnership(identity, message, proof string) bool
}

// PaymentOracle verifies that a proof-of-payment from a payer covers the
// expected amount. Deduplication of proofs is the store's concern, not the
// oracle's.
type PaymentOracle interface {
	VerifyPayment(proof, payer string, expectedAmount int64) bool
}

// HMACSignatureOracle verifies ownership proofs as HMAC-SHA256 over
// identity:message with a shared secret. It stands in for an on-chain
// signature check behind the same interface.
type HMACSignatureOracle struct {
	secret []byte
}

// NewHMACSignatureOracle creates an oracle bound to a shared secret.
func NewHMACSignatureOracle(secret string) *HMACSignatureOracle {
	return &HMACSignatureOracle{secret: []byte(secret)}
}

// VerifyOwnership checks proof against the expected HMAC in constant time.
func (o *HMACSignatureOracle) VerifyOwnership(identity, message, proof string) bool {
	mac := hmac.New(sha256.New, o.secret)
	mac.Write([]byte(identity))
	mac.Write([]byte{':'})
	mac.Write([]byte(message))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(proof))
}

// Sign produces the proof VerifyOwnership expects. Exposed for tests and
// local tooling.
func (o *HMACSignatureOracle) Sign(identity, message string) string {
	mac := hmac.New(sha256.New, o.secret)
	mac.Write([]byte(identity))
	mac.Write([]byte{':'})
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// AcceptAllPayments is a development stand-in for the payment verifier; any
// non-empty proof from any payer passes. Proof dedup still applies upstream.
type AcceptAllPayments struct{}

func (AcceptAllPayments) VerifyPayment(proof, payer string, expectedAmount int64) bool {
	return proof != ""
}
