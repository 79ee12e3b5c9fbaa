package hive

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
)

// mainnetChainID is the Hive mainnet chain id mixed into every signing
// digest.
const mainnetChainID = "beeab0de00000000000000000000000000000000000000000000000000000000"

// expirationFormat is the node's timestamp format (UTC without zone suffix).
const expirationFormat = "2006-01-02T15:04:05"

// Transaction is an unsigned or signed Hive transaction.
type Transaction struct {
	RefBlockNum    uint16
	RefBlockPrefix uint32
	Expiration     time.Time
	Operations     []Operation
	Signatures     []string
}

// NewTransaction builds a transaction anchored at the given head block. The
// TaPoS fields tie the transaction to a recent block so it cannot replay on
// another fork.
func NewTransaction(headBlockNumber uint32, headBlockID string, operations ...Operation) (*Transaction, error) {
	blockID, err := hex.DecodeString(headBlockID)
	if err != nil || len(blockID) < 8 {
		return nil, errors.Errorf("malformed head block id %q", headBlockID)
	}

	return &Transaction{
		RefBlockNum:    uint16(headBlockNumber & 0xffff),
		RefBlockPrefix: binary.LittleEndian.Uint32(blockID[4:8]),
		Expiration:     time.Now().UTC().Add(time.Minute),
		Operations:     operations,
	}, nil
}

// serialize writes the binary form that gets signed (without signatures).
func (tx *Transaction) serialize() ([]byte, error) {
	s := &serializer{}
	s.writeUint16(tx.RefBlockNum)
	s.writeUint32(tx.RefBlockPrefix)
	s.writeUint32(uint32(tx.Expiration.Unix()))

	s.writeVarint(uint64(len(tx.Operations)))
	for _, op := range tx.Operations {
		s.buf.WriteByte(op.OperationID())
		err := op.serialize(s)
		if err != nil {
			return nil, err
		}
	}
	s.writeVarint(0) // extensions
	return s.bytes(), nil
}

// Digest returns the signing digest: sha256(chainID || serialized).
func (tx *Transaction) Digest() ([]byte, error) {
	chainID, err := hex.DecodeString(mainnetChainID)
	if err != nil {
		return nil, err
	}
	serialized, err := tx.serialize()
	if err != nil {
		return nil, err
	}

	hasher := sha256.New()
	hasher.Write(chainID)
	hasher.Write(serialized)
	return hasher.Sum(nil), nil
}

// Sign appends a canonical recoverable signature by the given key. Hive
// nodes reject non-canonical signatures, so when the deterministic signature
// of the current serialization is not canonical the expiration is nudged by
// one second and the transaction re-signed.
func (tx *Transaction) Sign(privateKey *btcec.PrivateKey) error {
	const maxAttempts = 32
	for attempt := 0; attempt < maxAttempts; attempt++ {
		digest, err := tx.Digest()
		if err != nil {
			return err
		}

		compact := ecdsa.SignCompact(privateKey, digest, true)
		if isCanonicalSignature(compact) {
			tx.Signatures = append(tx.Signatures, hex.EncodeToString(compact))
			return nil
		}
		tx.Expiration = tx.Expiration.Add(time.Second)
	}
	return errors.New("failed to produce a canonical signature")
}

// isCanonicalSignature checks the graphene canonicity rules on a 65-byte
// compact signature.
func isCanonicalSignature(sig []byte) bool {
	return len(sig) == 65 &&
		sig[1]&0x80 == 0 &&
		!(sig[1] == 0 && sig[2]&0x80 == 0) &&
		sig[33]&0x80 == 0 &&
		!(sig[33] == 0 && sig[34]&0x80 == 0)
}

// MarshalJSON renders the condenser-format transaction.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	operations := make([]json.RawMessage, len(tx.Operations))
	for i, op := range tx.Operations {
		tuple, err := marshalOperationTuple(op)
		if err != nil {
			return nil, err
		}
		operations[i] = tuple
	}

	signatures := tx.Signatures
	if signatures == nil {
		signatures = []string{}
	}

	return json.Marshal(map[string]interface{}{
		"ref_block_num":    tx.RefBlockNum,
		"ref_block_prefix": tx.RefBlockPrefix,
		"expiration":       tx.Expiration.UTC().Format(expirationFormat),
		"operations":       operations,
		"extensions":       []interface{}{},
		"signatures":       signatures,
	})
}
