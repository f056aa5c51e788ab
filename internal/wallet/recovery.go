package wallet

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// All hashes are Keccak-256 over tightly packed arguments: addresses as 20
// bytes, hashes as 32 bytes, passwords as their raw bytes.

func keccak(parts ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// PasswordHash is H(password), the value supplied at provisioning.
func PasswordHash(password string) common.Hash {
	return keccak([]byte(password))
}

// PasswordCommitment binds a password hash to a wallet: H(wallet ‖ H(password)).
func PasswordCommitment(wallet common.Address, passwordHash common.Hash) common.Hash {
	return keccak(wallet.Bytes(), passwordHash.Bytes())
}

// CommitHash is the value submitted in the commit step: H(destination ‖ password).
// It hides the password while fixing where the funds will go.
func CommitHash(destination common.Address, password string) common.Hash {
	return keccak(destination.Bytes(), []byte(password))
}

// nextEntropy folds the call time into the wallet's rolling entropy.
func nextEntropy(prev common.Hash, wallet common.Address, unixNano int64) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(unixNano))
	return keccak(prev.Bytes(), wallet.Bytes(), ts[:])
}

// shortCode renders a six digit display challenge. Not a secret.
func shortCode(entropy common.Hash) uint32 {
	return binary.BigEndian.Uint32(entropy[:4]) % 1_000_000
}
