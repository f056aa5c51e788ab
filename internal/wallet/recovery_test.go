package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestCommitHashBindsDestination(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	b := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	if CommitHash(a, "pw") == CommitHash(b, "pw") {
		t.Fatalf("commit hash must differ per destination")
	}
	if CommitHash(a, "pw") != CommitHash(a, "pw") {
		t.Fatalf("commit hash must be deterministic")
	}
	if PasswordCommitment(a, PasswordHash("pw")) == PasswordCommitment(b, PasswordHash("pw")) {
		t.Fatalf("password commitment must differ per wallet")
	}
}

func TestPasswordHashMatchesKeccak(t *testing.T) {
	// keccak256("") is a well-known constant.
	want := common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if got := PasswordHash(""); got != want {
		t.Fatalf("expected %s, got %s", want.Hex(), got.Hex())
	}
}

func TestShortCodeRange(t *testing.T) {
	var entropy common.Hash
	addr := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	for i := int64(0); i < 50; i++ {
		entropy = nextEntropy(entropy, addr, i)
		if code := shortCode(entropy); code >= 1_000_000 {
			t.Fatalf("code %d out of range", code)
		}
	}
	if nextEntropy(common.Hash{}, addr, 1) == nextEntropy(common.Hash{}, addr, 2) {
		t.Fatalf("entropy must depend on time")
	}
}
