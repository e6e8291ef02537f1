package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"xdao.co/caspub/ledger"
)

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// MemorySigner is an in-memory ed25519 signer.
type MemorySigner struct {
	priv ed25519.PrivateKey
	addr ledger.AccountID
}

var _ ledger.Signer = (*MemorySigner)(nil)

// NewMemorySigner builds a signer from a 32-byte ed25519 seed.
func NewMemorySigner(seed []byte) (*MemorySigner, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: expected %d-byte seed, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &MemorySigner{
		priv: priv,
		addr: ledger.AccountID(base58.Encode(pub)),
	}, nil
}

// Address returns the base58 encoding of the public key.
func (s *MemorySigner) Address() ledger.AccountID { return s.addr }

// Sign returns an ed25519 signature over sha256(message).
func (s *MemorySigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ed25519.Sign(s.priv, digest[:]), nil
}

// Dilithium3Signer signs with dilithium3 over a configurable digest.
type Dilithium3Signer struct {
	priv *mode3.PrivateKey
	addr ledger.AccountID
	// HashAlg is the pre-signing digest: sha256 (default), sha512, sha3-256.
	HashAlg string
}

var _ ledger.Signer = (*Dilithium3Signer)(nil)

// GenerateDilithium3Signer returns a new dilithium3 signer.
func GenerateDilithium3Signer(rand io.Reader) (*Dilithium3Signer, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{
		priv: priv,
		addr: ledger.AccountID(base58.Encode(pub.Bytes())),
	}, nil
}

func (s *Dilithium3Signer) Address() ledger.AccountID { return s.addr }

func (s *Dilithium3Signer) Sign(message []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, fmt.Errorf("keys: missing private key")
	}
	hashAlg := s.HashAlg
	if hashAlg == "" {
		hashAlg = "sha256"
	}
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return sig, nil
}
