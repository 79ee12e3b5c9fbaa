package hive

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// serializer writes the Hive binary wire format used for transaction signing.
type serializer struct {
	buf bytes.Buffer
	err error
}

func (s *serializer) writeVarint(v uint64) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], v)
	s.buf.Write(scratch[:n])
}

func (s *serializer) writeUint16(v uint16) {
	var scratch [2]byte
	binary.LittleEndian.PutUint16(scratch[:], v)
	s.buf.Write(scratch[:])
}

func (s *serializer) writeUint32(v uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	s.buf.Write(scratch[:])
}

func (s *serializer) writeInt64(v int64) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(v))
	s.buf.Write(scratch[:])
}

// writeString writes a varint length prefix followed by the raw bytes.
func (s *serializer) writeString(v string) {
	s.writeVarint(uint64(len(v)))
	s.buf.WriteString(v)
}

// writeAsset writes amount, precision, and the symbol name padded to 7 bytes.
func (s *serializer) writeAsset(a Asset) {
	s.writeInt64(a.Amount)
	s.buf.WriteByte(a.Precision)
	symbol := make([]byte, 7)
	copy(symbol, a.Symbol)
	s.buf.Write(symbol)
}

// writePublicKey writes the 33 compressed key bytes of an STM... key.
func (s *serializer) writePublicKey(publicKey string) error {
	keyBytes, err := DecodePublicKey(publicKey)
	if err != nil {
		return err
	}
	s.buf.Write(keyBytes)
	return nil
}

// writeAuthority writes threshold, account auths, and key auths.
func (s *serializer) writeAuthority(authority Authority) error {
	s.writeUint32(authority.WeightThreshold)

	s.writeVarint(uint64(len(authority.AccountAuths)))
	for _, pair := range authority.AccountAuths {
		account, ok := pair[0].(string)
		if !ok {
			return errors.New("account auth name must be a string")
		}
		weight, err := authWeight(pair[1])
		if err != nil {
			return err
		}
		s.writeString(account)
		s.writeUint16(weight)
	}

	s.writeVarint(uint64(len(authority.KeyAuths)))
	for _, pair := range authority.KeyAuths {
		publicKey, ok := pair[0].(string)
		if !ok {
			return errors.New("key auth key must be a string")
		}
		weight, err := authWeight(pair[1])
		if err != nil {
			return err
		}
		err = s.writePublicKey(publicKey)
		if err != nil {
			return err
		}
		s.writeUint16(weight)
	}
	return nil
}

func authWeight(v interface{}) (uint16, error) {
	switch weight := v.(type) {
	case int:
		return uint16(weight), nil
	case uint16:
		return weight, nil
	case float64:
		return uint16(weight), nil
	}
	return 0, errors.Errorf("unsupported auth weight type %T", v)
}

func (s *serializer) bytes() []byte {
	return s.buf.Bytes()
}
