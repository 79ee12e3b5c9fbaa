package vault

import (
	"encoding/hex"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"

	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/dbmodels"
	"github.com/dluxio/hiveonboard/logger"
)

var log = logger.Logger("VALT")

// addressReuseCooldown is how long an address of a terminal channel rests
// before the vault may hand it to a new channel.
const addressReuseCooldown = 7 * 24 * time.Hour

// Vault derives per-channel deposit keys from a process-wide master seed and
// keeps the private halves encrypted at rest. The seed never touches the
// database.
type Vault struct {
	masterSeed []byte
	cipher     *Cipher
}

// New builds a Vault. seedMaterial is either a 64-hex-character seed or a
// BIP39 mnemonic; encryptionKey is the 64-hex-character AES-256 key.
func New(seedMaterial, encryptionKey string) (*Vault, error) {
	seed, err := seedFromMaterial(seedMaterial)
	if err != nil {
		return nil, err
	}
	cipher, err := NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &Vault{masterSeed: seed, cipher: cipher}, nil
}

// seedFromMaterial accepts a raw hex seed or a BIP39 mnemonic.
func seedFromMaterial(material string) ([]byte, error) {
	if len(material) == 64 {
		seed, err := hex.DecodeString(material)
		if err == nil {
			return seed, nil
		}
	}
	if bip39.IsMnemonicValid(material) {
		return bip39.NewSeed(material, ""), nil
	}
	return nil, errors.New("master seed must be 64 hex characters or a valid BIP39 mnemonic")
}

// ChannelAddress allocates a deposit address of the given currency. A
// recycled address past its cool-down is preferred; otherwise the next
// derivation index is consumed and a fresh key derived. Must run inside a
// database transaction so that index allocation and address reuse are
// race-free. The returned row has no owning channel yet; the caller assigns
// it after the channel row exists.
func (v *Vault) ChannelAddress(tx *gorm.DB, params *chainparams.Params, now time.Time) (
	address *dbmodels.CryptoAddress, reused bool, err error) {

	recycled, err := dbaccess.ReusableAddress(tx, string(params.Currency), now)
	if err != nil {
		return nil, false, err
	}
	if recycled != nil {
		log.Debugf("Reusing %s address %s (index %d)",
			params.Currency, recycled.Address, recycled.DerivationIndex)
		return recycled, true, nil
	}

	index, err := dbaccess.NextDerivationIndex(tx, string(params.Currency))
	if err != nil {
		return nil, false, err
	}

	derived, err := v.deriveKey(params, index)
	if err != nil {
		return nil, false, err
	}

	encryptedPrivateKey, err := v.cipher.Encrypt(derived.privateKey)
	if err != nil {
		return nil, false, err
	}

	row := &dbmodels.CryptoAddress{
		CryptoType:          string(params.Currency),
		DerivationIndex:     index,
		Address:             derived.address,
		PublicKey:           derived.publicKey,
		EncryptedPrivateKey: encryptedPrivateKey,
		DerivationPath:      derived.path,
		AddressType:         string(params.AddressType),
		CreatedAt:           now,
	}
	err = dbaccess.InsertAddress(tx, row)
	if err != nil {
		return nil, false, err
	}

	log.Debugf("Derived new %s address %s (index %d)", params.Currency, derived.address, index)
	return row, false, nil
}

// ReleaseChannelAddress detaches the address of a terminal channel and starts
// its reuse cool-down.
func (v *Vault) ReleaseChannelAddress(db *gorm.DB, channelID uint64, now time.Time) error {
	return dbaccess.ReleaseAddressForChannel(db, channelID, now.Add(addressReuseCooldown))
}

// PrivateKey decrypts the private key of an address row. It fails closed on
// any integrity error.
func (v *Vault) PrivateKey(address *dbmodels.CryptoAddress) ([]byte, error) {
	privateKey, err := v.cipher.Decrypt(address.EncryptedPrivateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "integrity failure decrypting key of address %s", address.Address)
	}
	return privateKey, nil
}
