package keys

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for the deployment master key. The KDF is deliberately
// slow; it runs once per process at startup, not per pairing.
const (
	scryptN      = 1 << 15 // CPU/memory cost
	scryptR      = 8       // block size
	scryptP      = 1       // parallelism
	masterKeyLen = 24      // AES-192
)

// masterKeySalt is the fixed deployment-wide salt for the master key KDF.
// Changing it invalidates every previously issued reader key.
const masterKeySalt = "acs-core/reader-master-key"

// ivLen is the AES block size; the IV is the SHA-256 prefix of the
// pairing timestamp.
const ivLen = aes.BlockSize

// Deriver turns a reader's identity and pairing epoch into its symmetric
// session key. It holds the scrypt-derived master key and is safe for
// concurrent use; construct one per process and pass it explicitly.
type Deriver struct {
	masterKey []byte
}

// NewDeriver derives the per-deployment master key from the shared service
// secret. The secret must be non-empty; a deployment without one cannot
// issue reader keys.
func NewDeriver(sharedSecret string) (*Deriver, error) {
	if sharedSecret == "" {
		return nil, ErrNoSecret
	}

	key, err := scrypt.Key([]byte(sharedSecret), []byte(masterKeySalt), scryptN, scryptR, scryptP, masterKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}

	return &Deriver{masterKey: key}, nil
}

// DeriveKey produces the hex-encoded session key for one pairing epoch.
//
// The plaintext "shlug:<serial>:<keyCycle>" is encrypted with AES-192-CBC
// under the master key. The IV is the first 16 bytes of
// SHA-256(pairedAt in RFC 3339), so keys for the same serial differ in
// their leading blocks across pairings even when only the cycle changed.
//
// Deterministic for identical inputs; the cycle is part of the plaintext,
// so two cycles for the same serial and timestamp always diverge.
func (d *Deriver) DeriveKey(serial string, keyCycle int, pairedAt time.Time) (string, error) {
	if serial == "" {
		return "", ErrEmptySerial
	}
	if keyCycle < 0 {
		return "", ErrNegativeCycle
	}

	iv := deriveIV(pairedAt)

	block, err := aes.NewCipher(d.masterKey)
	if err != nil {
		return "", fmt.Errorf("initialising cipher: %w", err)
	}

	plaintext := pad([]byte(fmt.Sprintf("shlug:%s:%d", serial, keyCycle)))
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return hex.EncodeToString(ciphertext), nil
}

// deriveIV computes the initialisation vector from the pairing timestamp.
func deriveIV(pairedAt time.Time) []byte {
	sum := sha256.Sum256([]byte(pairedAt.UTC().Format(time.RFC3339)))
	return sum[:ivLen]
}

// pad applies PKCS#7 padding up to the AES block size.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}
