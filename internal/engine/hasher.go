package engine

import (
	"crypto/sha256"
	"encoding/binary"
)

// GenesisHashSeed anchors the chain; hash[-1] = SHA-256(seed).
const GenesisHashSeed = "CoverLedger:genesis:v1"

// StateHasher maintains the state hash chain:
// hash[N] = SHA-256(hash[N-1] || sequence || digest).
// Each ComputeHash call advances the chain tip.
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(GenesisHashSeed))}
}

// ComputeHash folds one transition into the chain and returns the new tip.
// The sequence is encoded little-endian, matching the digest encoding.
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))

	d := sha256.New()
	d.Write(h.prevHash[:])
	d.Write(seq[:])
	d.Write(stateDigest)
	copy(h.prevHash[:], d.Sum(nil))

	return h.prevHash
}

// GetPrevHash returns the chain tip without advancing it.
func (h *StateHasher) GetPrevHash() [32]byte {
	return h.prevHash
}

// SetPrevHash resumes the chain from a persisted tip during replay.
func (h *StateHasher) SetPrevHash(hash [32]byte) {
	h.prevHash = hash
}
