// Package security signs match responses so a quoted recommendation can be verified later.
package security

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const algorithm = "secp256k1-keccak256"

var (
	ErrSignatureExpired = errors.New("signature expired")
	ErrSignatureInvalid = errors.New("signature invalid")
)

// Integrity holds digests of the payload bytes.
type Integrity struct {
	SHA256    string `json:"sha256"`
	Keccak256 string `json:"keccak256"`
}

// Signature is the signing metadata of an envelope. Times are unix seconds.
type Signature struct {
	Value      string `json:"signature"`
	Signer     string `json:"signer"`
	Algorithm  string `json:"algorithm"`
	IssuedAt   int64  `json:"issued_at"`
	ValidUntil int64  `json:"valid_until"`
}

// Envelope is a signed quote.
type Envelope struct {
	QuoteID   string          `json:"quote_id"`
	Payload   json.RawMessage `json:"payload"`
	Integrity Integrity       `json:"integrity"`
	Signature Signature       `json:"signature"`
}

// Signer issues and checks quote envelopes with one secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	validity   time.Duration
	now        func() time.Time
}

// NewSigner uses the hex-encoded key, or a fresh key when hexKey is empty.
func NewSigner(hexKey string, validity time.Duration) (*Signer, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	if hexKey == "" {
		key, err = crypto.GenerateKey()
	} else {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	s := &Signer{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		validity:   validity,
		now:        time.Now,
	}
	logrus.Infof("Quote signer initialized with address: %s", s.address.Hex())
	return s, nil
}

// Address is the signer identity embedded in every envelope.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// Sign wraps payload in a new envelope with a fresh quote ID.
func (s *Signer) Sign(payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := s.now()
	env := Envelope{
		QuoteID:   uuid.NewString(),
		Payload:   raw,
		Integrity: integrity(raw),
		Signature: Signature{
			Signer:     s.address.Hex(),
			Algorithm:  algorithm,
			IssuedAt:   now.Unix(),
			ValidUntil: now.Add(s.validity).Unix(),
		},
	}

	sig, err := crypto.Sign(digest(env), s.privateKey)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to sign payload: %w", err)
	}
	env.Signature.Value = hexutil.Encode(sig)
	return env, nil
}

// Verify checks that env was issued by this signer, is unmodified, and has not expired.
func (s *Signer) Verify(env Envelope) error {
	if s.now().Unix() > env.Signature.ValidUntil {
		return fmt.Errorf("%w at %v", ErrSignatureExpired, time.Unix(env.Signature.ValidUntil, 0).UTC())
	}

	if integrity(env.Payload) != env.Integrity {
		return fmt.Errorf("%w: payload digest mismatch", ErrSignatureInvalid)
	}

	sig, err := hexutil.Decode(env.Signature.Value)
	if err != nil || len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: malformed signature", ErrSignatureInvalid)
	}

	pub, err := crypto.SigToPub(digest(env), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != s.address || env.Signature.Signer != s.address.Hex() {
		return fmt.Errorf("%w: unknown signer %s", ErrSignatureInvalid, signer.Hex())
	}
	return nil
}

func integrity(payload []byte) Integrity {
	sum := sha256.Sum256(payload)
	return Integrity{
		SHA256:    hex.EncodeToString(sum[:]),
		Keccak256: crypto.Keccak256Hash(payload).Hex(),
	}
}

// digest binds the quote ID and validity window to the payload.
func digest(env Envelope) []byte {
	header := fmt.Sprintf("%s|%s|%d|%d|", env.QuoteID, env.Signature.Algorithm, env.Signature.IssuedAt, env.Signature.ValidUntil)
	return crypto.Keccak256([]byte(header), env.Payload)
}
