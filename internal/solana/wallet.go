package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Wallet holds a signing keypair.
type Wallet struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewWalletFromBase58 loads a keypair from a base58-encoded private key.
// Accepts the 64-byte full key format (secret || public) or a 32-byte seed.
func NewWalletFromBase58(key string) (*Wallet, error) {
	raw, err := base58.Decode(key)
	if err != nil {
		return nil, fmt.Errorf("decode base58 key: %w", err)
	}
	return walletFromBytes(raw)
}

// NewWalletFromJSON loads a keypair from a JSON byte array
// (the solana-keygen file format).
func NewWalletFromJSON(data []byte) (*Wallet, error) {
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode json key: %w", err)
	}
	return walletFromBytes(raw)
}

func walletFromBytes(raw []byte) (*Wallet, error) {
	switch len(raw) {
	case ed25519.PrivateKeySize: // 64 bytes: secret || public
		priv := ed25519.PrivateKey(raw)
		return &Wallet{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
	case ed25519.SeedSize: // 32 bytes: seed only
		priv := ed25519.NewKeyFromSeed(raw)
		return &Wallet{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
	default:
		return nil, fmt.Errorf("unexpected key length %d, want 32 or 64", len(raw))
	}
}

// Address returns the base58-encoded public key.
func (w *Wallet) Address() string {
	return base58.Encode(w.pub)
}

// Sign signs a serialized transaction message.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}

// SignTransaction attaches the wallet's signature to a serialized
// transaction. The wire format is: signature count (shortvec, always < 128
// here), signatures, then the message. The first signature slot belongs to
// the fee payer, which must be this wallet.
func (w *Wallet) SignTransaction(tx []byte) ([]byte, error) {
	if len(tx) < 1 {
		return nil, fmt.Errorf("empty transaction")
	}

	numSigs := int(tx[0])
	if numSigs == 0 || numSigs > 127 {
		return nil, fmt.Errorf("unexpected signature count %d", numSigs)
	}

	msgOffset := 1 + numSigs*ed25519.SignatureSize
	if len(tx) <= msgOffset {
		return nil, fmt.Errorf("transaction too short for %d signatures", numSigs)
	}

	signed := make([]byte, len(tx))
	copy(signed, tx)

	sig := ed25519.Sign(w.priv, tx[msgOffset:])
	copy(signed[1:1+ed25519.SignatureSize], sig)

	return signed, nil
}

// IsOnCurve reports whether a base58 address decodes to a valid ed25519
// curve point. Wallet addresses are on-curve; program derived addresses
// are not.
func IsOnCurve(address string) bool {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// ValidateAddress checks that an address is plausible for wallet tracking:
// correct base58 32-byte decoding. PDAs are allowed since some tracked
// entities trade through delegated accounts.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address decodes to %d bytes, want 32", len(raw))
	}
	return nil
}
