package vault

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/anyproto/go-slip10"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/chainparams"
)

// derivedKey is the outcome of deriving one (currency, index) pair from the
// master seed.
type derivedKey struct {
	address    string
	publicKey  string
	privateKey []byte
	path       string
}

// deriveKey derives the deposit key of a currency at the given index.
func (v *Vault) deriveKey(params *chainparams.Params, index uint32) (*derivedKey, error) {
	switch params.AddressType {
	case chainparams.AddressTypeBech32:
		return v.deriveBitcoin(params, index)
	case chainparams.AddressTypeEVM:
		return v.deriveEVM(params, index)
	case chainparams.AddressTypeEd25519:
		return v.deriveSolana(params, index)
	}
	return nil, errors.Errorf("currency %s has no derivable address type", params.Currency)
}

// deriveBitcoin derives a BIP84 P2WPKH key and encodes a bech32 address.
func (v *Vault) deriveBitcoin(params *chainparams.Params, index uint32) (*derivedKey, error) {
	path := fmt.Sprintf("%s/%d", params.DerivationPath, index)
	extendedKey, err := v.deriveSecp256k1(path)
	if err != nil {
		return nil, err
	}

	privateKey, err := extendedKey.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract private key")
	}
	publicKey, err := extendedKey.ECPubKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract public key")
	}

	witnessProgram := btcutil.Hash160(publicKey.SerializeCompressed())
	address, err := btcutil.NewAddressWitnessPubKeyHash(witnessProgram, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode bech32 address")
	}

	return &derivedKey{
		address:    address.EncodeAddress(),
		publicKey:  hex.EncodeToString(publicKey.SerializeCompressed()),
		privateKey: privateKey.Serialize(),
		path:       path,
	}, nil
}

// deriveEVM derives a BIP44 secp256k1 key and encodes the keccak address
// shared by ETH, BNB, and MATIC.
func (v *Vault) deriveEVM(params *chainparams.Params, index uint32) (*derivedKey, error) {
	path := fmt.Sprintf("%s/%d", params.DerivationPath, index)
	extendedKey, err := v.deriveSecp256k1(path)
	if err != nil {
		return nil, err
	}

	privateKey, err := extendedKey.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract private key")
	}
	ecdsaKey := privateKey.ToECDSA()
	address := ethcrypto.PubkeyToAddress(ecdsaKey.PublicKey)

	return &derivedKey{
		address:    strings.ToLower(address.Hex()),
		publicKey:  hex.EncodeToString(ethcrypto.CompressPubkey(&ecdsaKey.PublicKey)),
		privateKey: privateKey.Serialize(),
		path:       path,
	}, nil
}

// deriveSolana derives a SLIP-0010 ed25519 key on the hardened Solana path.
func (v *Vault) deriveSolana(params *chainparams.Params, index uint32) (*derivedKey, error) {
	path := fmt.Sprintf("%s/%d'/0'", params.DerivationPath, index)
	node, err := slip10.DeriveForPath(path, v.masterSeed)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive %s", path)
	}

	publicKey, privateKey := node.Keypair()
	address := solana.PublicKeyFromBytes(publicKey)

	return &derivedKey{
		address:    address.String(),
		publicKey:  address.String(),
		privateKey: privateKey,
		path:       path,
	}, nil
}

// deriveSecp256k1 walks a BIP32 path from the master seed.
func (v *Vault) deriveSecp256k1(path string) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewMaster(v.masterSeed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build master key")
	}

	components := strings.Split(path, "/")
	if len(components) == 0 || components[0] != "m" {
		return nil, errors.Errorf("derivation path %s must start with m/", path)
	}
	for _, component := range components[1:] {
		hardened := strings.HasSuffix(component, "'")
		component = strings.TrimSuffix(component, "'")
		childIndex, err := strconv.ParseUint(component, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path component %q in %s", component, path)
		}
		index := uint32(childIndex)
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}
		key, err = key.Derive(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive %s", path)
		}
	}
	return key, nil
}
