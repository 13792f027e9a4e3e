package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	// Domain(string name,string version,uint256 chainId)
	domainTypeHash = ethcrypto.Keccak256(
		[]byte("Domain(string name,string version,uint256 chainId)"),
	)

	// Submission(bytes32 venue,bytes32 action,uint8 kind,uint8 side,uint256 size,uint256 price,bytes32 order,uint256 nonce)
	submissionTypeHash = ethcrypto.Keccak256(
		[]byte("Submission(bytes32 venue,bytes32 action,uint8 kind,uint8 side,uint256 size,uint256 price,bytes32 order,uint256 nonce)"),
	)
)

// amountScale is the fixed-point exponent used when hashing decimal amounts.
const amountScale = 18

// Submission is the signed envelope of an action sent to a REST venue.
type Submission struct {
	VenueID  string
	ActionID string
	Kind     uint8 // 0 market, 1 limit, 2 cancel, 3 swap
	Side     uint8 // 0 buy, 1 sell
	Size     decimal.Decimal
	Price    decimal.Decimal
	OrderID  string
	Nonce    int64
}

// Signer signs venue submissions with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key. The
// chain id only separates signing domains.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		domainSep: ethcrypto.Keccak256(concatBytes(
			domainTypeHash,
			ethcrypto.Keccak256([]byte("venuebot")),
			ethcrypto.Keccak256([]byte("1")),
			bigIntTo32Bytes(big.NewInt(chainID)),
		)),
	}, nil
}

// Address returns the address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Digest returns the 32-byte hash that SignSubmission signs.
func (s *Signer) Digest(sub Submission) ([]byte, error) {
	size, err := scaled(sub.Size)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: size: %w", err)
	}
	price, err := scaled(sub.Price)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: price: %w", err)
	}
	structHash := ethcrypto.Keccak256(concatBytes(
		submissionTypeHash,
		ethcrypto.Keccak256([]byte(sub.VenueID)),
		ethcrypto.Keccak256([]byte(sub.ActionID)),
		bigIntTo32Bytes(big.NewInt(int64(sub.Kind))),
		bigIntTo32Bytes(big.NewInt(int64(sub.Side))),
		bigIntTo32Bytes(size),
		bigIntTo32Bytes(price),
		ethcrypto.Keccak256([]byte(sub.OrderID)),
		bigIntTo32Bytes(big.NewInt(sub.Nonce)),
	))
	return ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, s.domainSep, structHash)), nil
}

// SignSubmission returns the hex-encoded 65-byte signature (r || s || v)
// with v in {27, 28}.
func (s *Signer) SignSubmission(sub Submission) (string, error) {
	digest, err := s.Digest(sub)
	if err != nil {
		return "", err
	}
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverAddress returns the address that produced sigHex over digest.
func RecoverAddress(digest []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: signature length %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// scaled converts a non-negative decimal to a 1e18 fixed-point integer.
func scaled(d decimal.Decimal) (*big.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", d.String())
	}
	return d.Shift(amountScale).Truncate(0).BigInt(), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
