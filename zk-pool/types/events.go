package types

import "github.com/ethereum/go-ethereum/common"

// NewCommitment is logged for every output inserted into the accumulator.
type NewCommitment struct {
	Commitment      Hash
	Index           uint64
	EncryptedOutput []byte
}

// NewNullifier is logged for every consumed input.
type NewNullifier struct {
	Nullifier Hash
}

// PublicKeyRegistered announces the shielded public key of an account.
type PublicKeyRegistered struct {
	Owner common.Address
	Key   []byte
}
