package models

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/toftlabs/toft/wire"
)

// NewSignedCheckpoint hashes and signs a session state marker with the
// server's private key. The preimage is a canonical string so the signature
// stays verifiable independently of the wire encoding.
func NewSignedCheckpoint(key *ecdsa.PrivateKey, sessionID string, revision uint64, stateHash common.Hash, timestamp int64) (wire.SignedCheckpoint, error) {
	hash := CheckpointHash(sessionID, revision, stateHash, timestamp)

	signature, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return wire.SignedCheckpoint{}, errors.New("failed to sign checkpoint").Wrap(err)
	}

	return wire.SignedCheckpoint{
		SessionID: sessionID,
		Revision:  revision,
		StateHash: stateHash.Hex(),
		Timestamp: timestamp,
		Hash:      hash.Hex(),
		Signature: hexutil.Encode(signature),
	}, nil
}

// CheckpointHash returns the Keccak-256 digest of the canonical checkpoint
// preimage "session|revision|state hash|timestamp".
func CheckpointHash(sessionID string, revision uint64, stateHash common.Hash, timestamp int64) common.Hash {
	preimage := fmt.Sprintf("%s|%d|%s|%d", sessionID, revision, stateHash.Hex(), timestamp)
	return crypto.Keccak256Hash([]byte(preimage))
}

// VerifyCheckpoint checks that cp's hash matches its fields and that its
// signature recovers the given signer address.
func VerifyCheckpoint(cp wire.SignedCheckpoint, signer common.Address) error {
	stateHash := common.HexToHash(cp.StateHash)

	hash := CheckpointHash(cp.SessionID, cp.Revision, stateHash, cp.Timestamp)
	if hash.Hex() != cp.Hash {
		return errors.New("checkpoint hash does not match its fields").
			WithTag("hash", cp.Hash).
			WithTag("computed_hash", hash.Hex())
	}

	signature, err := hexutil.Decode(cp.Signature)
	if err != nil {
		return errors.New("failed to decode checkpoint signature").Wrap(err)
	}
	if len(signature) != crypto.SignatureLength {
		return errors.New("unexpected checkpoint signature length").
			WithTag("length", len(signature))
	}

	pub, err := crypto.SigToPub(hash.Bytes(), signature)
	if err != nil {
		return errors.New("failed to recover checkpoint signer").Wrap(err)
	}
	if addr := crypto.PubkeyToAddress(*pub); addr != signer {
		return errors.New("checkpoint signed by unexpected address").
			WithTag("address", addr.Hex()).
			WithTag("signer", signer.Hex())
	}
	return nil
}
