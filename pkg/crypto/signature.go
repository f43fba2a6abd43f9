package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

// Signer signs messages with a private key using ML-DSA-87 (NIST PQC
// level 5, the highest of the three standardized Dilithium parameter
// sets), replacing the classical ECDSA/Schnorr signatures a pre-quantum
// chain would use.
type Signer interface {
	// Sign produces an ML-DSA-87 signature over an arbitrary-length message.
	Sign(message []byte) ([]byte, error)
	// PublicKey returns the packed public key.
	PublicKey() []byte
}

// Verifier verifies ML-DSA-87 signatures.
type Verifier interface {
	// Verify checks a signature against a message and packed public key.
	Verify(message, signature, publicKey []byte) bool
}

// PrivateKey wraps an ML-DSA-87 private/public keypair.
type PrivateKey struct {
	priv *mldsa87.PrivateKey
	pub  *mldsa87.PublicKey
}

// GenerateKey creates a new random ML-DSA-87 keypair.
func GenerateKey() (*PrivateKey, error) {
	pub, priv, err := mldsa87.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{priv: priv, pub: pub}, nil
}

// PrivateKeyFromBytes unpacks a PrivateKey from its packed encoding.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != mldsa87.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", mldsa87.PrivateKeySize, len(b))
	}
	var priv mldsa87.PrivateKey
	if err := priv.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("unpack private key: %w", err)
	}
	pub := priv.Public().(*mldsa87.PublicKey)
	return &PrivateKey{priv: &priv, pub: pub}, nil
}

// Sign produces an ML-DSA-87 signature over message.
func (pk *PrivateKey) Sign(message []byte) ([]byte, error) {
	sig := make([]byte, mldsa87.SignatureSize)
	if err := mldsa87.SignTo(pk.priv, message, nil, false, sig); err != nil {
		return nil, fmt.Errorf("mldsa sign: %w", err)
	}
	return sig, nil
}

// PublicKey returns the packed 2592-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	b, err := pk.pub.MarshalBinary()
	if err != nil {
		// MarshalBinary on a valid *mldsa87.PublicKey never fails.
		panic(fmt.Sprintf("marshal public key: %v", err))
	}
	return b
}

// Serialize returns the packed 4896-byte private key.
func (pk *PrivateKey) Serialize() []byte {
	b, err := pk.priv.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("marshal private key: %v", err))
	}
	return b
}

// Zero overwrites the private key's scalar material with zeros.
func (pk *PrivateKey) Zero() {
	*pk.priv = mldsa87.PrivateKey{}
}

// VerifySignature checks an ML-DSA-87 signature against a message and a
// packed public key. Returns false on any malformed input or mismatch.
func VerifySignature(message, signature, publicKey []byte) bool {
	if len(publicKey) != mldsa87.PublicKeySize || len(signature) != mldsa87.SignatureSize {
		return false
	}
	var pub mldsa87.PublicKey
	if err := pub.UnmarshalBinary(publicKey); err != nil {
		return false
	}
	return mldsa87.Verify(&pub, message, nil, signature)
}

// MLDSAVerifier implements the Verifier interface.
type MLDSAVerifier struct{}

// Verify checks an ML-DSA-87 signature against a message and packed public key.
func (v MLDSAVerifier) Verify(message, signature, publicKey []byte) bool {
	return VerifySignature(message, signature, publicKey)
}

// Sizes, exported for callers that need to size buffers or validate
// script-pushed key/signature lengths without importing mldsa87 directly.
const (
	PublicKeySize  = mldsa87.PublicKeySize
	SignatureSize  = mldsa87.SignatureSize
	PrivateKeySize = mldsa87.PrivateKeySize
)
