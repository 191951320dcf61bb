package replay

import (
	"errors"
	"testing"

	"github.com/MJE43/fruit-merge-go/internal/fruit"
	"github.com/MJE43/fruit-merge-go/internal/sim"
)

func sampleLog() []sim.DropInput {
	return []sim.DropInput{
		{X: 0.5, AtMs: 1717243200000, Tier: fruit.Cherry},
		{X: 0.51234567, AtMs: 1717243200600, Tier: fruit.Cherry},
		{X: 0.05, AtMs: 1717243201200, Tier: fruit.Strawberry},
		{X: 1.0, AtMs: 1717243202000, Tier: fruit.Grape},
		{X: 0.0, AtMs: 1717243203500, Tier: fruit.Cherry},
	}
}

func TestRoundTripPreservesDigest(t *testing.T) {
	log := sampleLog()

	data, err := Encode(log)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != len(log) {
		t.Fatalf("decoded %d entries, want %d", len(decoded), len(log))
	}
	for i := range decoded {
		if decoded[i].AtMs != log[i].AtMs {
			t.Errorf("entry %d: AtMs = %d, want %d", i, decoded[i].AtMs, log[i].AtMs)
		}
		if decoded[i].Tier != log[i].Tier {
			t.Errorf("entry %d: Tier = %v, want %v", i, decoded[i].Tier, log[i].Tier)
		}
	}

	if Digest(decoded) != Digest(log) {
		t.Error("digest changed across an encode/decode round trip")
	}
}

func TestEmptyLogRoundTrip(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode(nil) failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decoded %d entries from empty log", len(decoded))
	}
	if !Verify(data, Digest(nil)) {
		t.Error("empty log failed verification")
	}
}

func TestVerifyAcceptsUntamperedBlob(t *testing.T) {
	log := sampleLog()
	data, err := Encode(log)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !Verify(data, Digest(log)) {
		t.Error("verification failed for untampered blob")
	}
}

// TestTamperDetection flips every byte of the encoded blob in turn; each
// mutation must either fail decoding or decode to content whose digest no
// longer matches the stored hash.
func TestTamperDetection(t *testing.T) {
	log := sampleLog()
	data, err := Encode(log)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	hash := Digest(log)

	for i := range data {
		tampered := make([]byte, len(data))
		copy(tampered, data)
		tampered[i] ^= 0xFF

		if Verify(tampered, hash) {
			t.Errorf("byte %d: tampered blob passed verification", i)
		}
	}
}

func TestCheckDistinguishesFailures(t *testing.T) {
	log := sampleLog()
	data, err := Encode(log)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if err := Check(data, Digest(log)); err != nil {
		t.Errorf("Check on valid blob = %v, want nil", err)
	}
	if err := Check(data, "deadbeef"); !errors.Is(err, ErrIntegrityMismatch) {
		t.Errorf("Check with wrong hash = %v, want ErrIntegrityMismatch", err)
	}
	if err := Check([]byte("not a replay"), Digest(log)); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("Check on garbage = %v, want ErrDecodeFailure", err)
	}
}

func TestEncodeRejectsMalformedEntries(t *testing.T) {
	bad := [][]sim.DropInput{
		{{X: -0.5, AtMs: 1000, Tier: fruit.Cherry}},
		{{X: 0.5, AtMs: 1000, Tier: fruit.Tier(99)}},
		{{X: 0.5, AtMs: 2000, Tier: fruit.Cherry}, {X: 0.5, AtMs: 1000, Tier: fruit.Cherry}},
	}
	for i, log := range bad {
		if _, err := Encode(log); err == nil {
			t.Errorf("case %d: Encode accepted malformed log", i)
		}
	}
}
