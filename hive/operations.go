package hive

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Operation ids on the Hive mainnet.
const (
	opIDAccountCreate        = 9
	opIDClaimAccount         = 22
	opIDCreateClaimedAccount = 23
)

// Asset is a Hive token amount. It serializes textually as "3.000 HIVE" and
// in binary as amount/precision/symbol.
type Asset struct {
	Amount    int64
	Precision uint8
	Symbol    string
}

// HiveAsset builds a HIVE-denominated asset from a float amount.
func HiveAsset(amount float64) Asset {
	return Asset{Amount: int64(amount*1000 + 0.5), Precision: 3, Symbol: "HIVE"}
}

// String renders the textual form used in JSON payloads, e.g. "3.000 HIVE".
func (a Asset) String() string {
	scale := int64(1)
	for i := uint8(0); i < a.Precision; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%d.%0*d %s", a.Amount/scale, a.Precision, a.Amount%scale, a.Symbol)
}

// MarshalJSON renders the textual asset form.
func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Authority is a weighted key/account set guarding one of an account's roles.
type Authority struct {
	WeightThreshold uint32          `json:"weight_threshold"`
	AccountAuths    [][]interface{} `json:"account_auths"`
	KeyAuths        [][]interface{} `json:"key_auths"`
}

// SingleKeyAuthority builds the common one-key authority.
func SingleKeyAuthority(publicKey string) Authority {
	return Authority{
		WeightThreshold: 1,
		AccountAuths:    [][]interface{}{},
		KeyAuths:        [][]interface{}{{publicKey, 1}},
	}
}

// Operation is a single Hive operation. Implementations provide both the
// condenser-style JSON form and the binary form that gets signed.
type Operation interface {
	OperationName() string
	OperationID() uint8
	serialize(s *serializer) error
}

// ClaimAccountOperation spends RC (or a fee) to mint an account creation
// token for Creator.
type ClaimAccountOperation struct {
	Creator string `json:"creator"`
	Fee     Asset  `json:"fee"`
}

// OperationName implements Operation.
func (op *ClaimAccountOperation) OperationName() string { return "claim_account" }

// OperationID implements Operation.
func (op *ClaimAccountOperation) OperationID() uint8 { return opIDClaimAccount }

func (op *ClaimAccountOperation) serialize(s *serializer) error {
	s.writeString(op.Creator)
	s.writeAsset(op.Fee)
	s.writeVarint(0) // extensions
	return nil
}

// MarshalJSON renders the condenser operation payload.
func (op *ClaimAccountOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"creator":    op.Creator,
		"fee":        op.Fee,
		"extensions": []interface{}{},
	})
}

// CreateClaimedAccountOperation consumes one previously claimed account
// creation token to mint NewAccountName.
type CreateClaimedAccountOperation struct {
	Creator        string    `json:"creator"`
	NewAccountName string    `json:"new_account_name"`
	Owner          Authority `json:"owner"`
	Active         Authority `json:"active"`
	Posting        Authority `json:"posting"`
	MemoKey        string    `json:"memo_key"`
	JSONMetadata   string    `json:"json_metadata"`
}

// OperationName implements Operation.
func (op *CreateClaimedAccountOperation) OperationName() string { return "create_claimed_account" }

// OperationID implements Operation.
func (op *CreateClaimedAccountOperation) OperationID() uint8 { return opIDCreateClaimedAccount }

func (op *CreateClaimedAccountOperation) serialize(s *serializer) error {
	s.writeString(op.Creator)
	s.writeString(op.NewAccountName)
	for _, authority := range []Authority{op.Owner, op.Active, op.Posting} {
		err := s.writeAuthority(authority)
		if err != nil {
			return err
		}
	}
	err := s.writePublicKey(op.MemoKey)
	if err != nil {
		return err
	}
	s.writeString(op.JSONMetadata)
	s.writeVarint(0) // extensions
	return nil
}

// MarshalJSON renders the condenser operation payload.
func (op *CreateClaimedAccountOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"creator":          op.Creator,
		"new_account_name": op.NewAccountName,
		"owner":            op.Owner,
		"active":           op.Active,
		"posting":          op.Posting,
		"memo_key":         op.MemoKey,
		"json_metadata":    op.JSONMetadata,
		"extensions":       []interface{}{},
	})
}

// AccountCreateOperation mints NewAccountName by paying the full creation
// fee.
type AccountCreateOperation struct {
	Fee            Asset     `json:"fee"`
	Creator        string    `json:"creator"`
	NewAccountName string    `json:"new_account_name"`
	Owner          Authority `json:"owner"`
	Active         Authority `json:"active"`
	Posting        Authority `json:"posting"`
	MemoKey        string    `json:"memo_key"`
	JSONMetadata   string    `json:"json_metadata"`
}

// OperationName implements Operation.
func (op *AccountCreateOperation) OperationName() string { return "account_create" }

// OperationID implements Operation.
func (op *AccountCreateOperation) OperationID() uint8 { return opIDAccountCreate }

func (op *AccountCreateOperation) serialize(s *serializer) error {
	s.writeAsset(op.Fee)
	s.writeString(op.Creator)
	s.writeString(op.NewAccountName)
	for _, authority := range []Authority{op.Owner, op.Active, op.Posting} {
		err := s.writeAuthority(authority)
		if err != nil {
			return err
		}
	}
	err := s.writePublicKey(op.MemoKey)
	if err != nil {
		return err
	}
	s.writeString(op.JSONMetadata)
	return nil
}

// MarshalJSON renders the condenser operation payload.
func (op *AccountCreateOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"fee":              op.Fee,
		"creator":          op.Creator,
		"new_account_name": op.NewAccountName,
		"owner":            op.Owner,
		"active":           op.Active,
		"posting":          op.Posting,
		"memo_key":         op.MemoKey,
		"json_metadata":    op.JSONMetadata,
	})
}

// marshalOperationTuple renders the condenser ["name", {...}] pair.
func marshalOperationTuple(op Operation) (json.RawMessage, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s operation", op.OperationName())
	}
	tuple, err := json.Marshal([]json.RawMessage{
		json.RawMessage(fmt.Sprintf("%q", op.OperationName())),
		payload,
	})
	return tuple, errors.Wrap(err, "failed to marshal operation tuple")
}
