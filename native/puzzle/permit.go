package puzzle

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"puzzlechain/crypto"
)

// PermitDomain separates permit signatures from every other signed payload.
const PermitDomain = "PUZZLE_PERMIT_V1"

// Permission is a capability granted by a permit.
type Permission string

const (
	PermissionOwner     Permission = "owner"
	PermissionHistory   Permission = "history"
	PermissionAllowance Permission = "allowance"
	PermissionBalance   Permission = "balance"
)

// PermitParams is the signed body of a permit.
type PermitParams struct {
	PermitName    string       `json:"permit_name"`
	ChainID       string       `json:"chain_id"`
	AllowedTokens []string     `json:"allowed_tokens"`
	Permissions   []Permission `json:"permissions"`
}

// PermitSignature carries the signer's secp256k1 public key (33 or 65 bytes)
// and a 64 byte r||s or 65 byte r||s||v signature.
type PermitSignature struct {
	PubKey    []byte `json:"pub_key"`
	Signature []byte `json:"signature"`
}

// Permit is a detached, revocable authorization statement. It never expires.
type Permit struct {
	Params    PermitParams    `json:"params"`
	Signature PermitSignature `json:"signature"`
}

// SignBytes returns the digest that permit signatures cover.
func (p PermitParams) SignBytes() ([]byte, error) {
	payload, err := json.Marshal(struct {
		Domain string       `json:"domain"`
		Params PermitParams `json:"params"`
	}{Domain: PermitDomain, Params: p})
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(payload), nil
}

// SignPermit produces a permit over params signed by key.
func SignPermit(params PermitParams, key *ecdsa.PrivateKey) (*Permit, error) {
	if key == nil {
		return nil, fmt.Errorf("permit: signing key required")
	}
	digest, err := params.SignBytes()
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	return &Permit{
		Params: params,
		Signature: PermitSignature{
			PubKey:    ethcrypto.CompressPubkey(&key.PublicKey),
			Signature: sig,
		},
	}, nil
}

// HasPermission reports whether perm was granted.
func (p *Permit) HasPermission(perm Permission) bool {
	if p == nil {
		return false
	}
	for _, granted := range p.Params.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedCredential, fmt.Sprintf(format, args...))
}

// validatePermit checks the signature, chain binding, token binding and
// revocation status of permit and returns the owner address.
func validatePermit(creds credentialView, cfg *contractConfig, permit *Permit) (Address, error) {
	if permit == nil {
		return Address{}, malformed("permit required")
	}
	name := strings.TrimSpace(permit.Params.PermitName)
	if name == "" {
		return Address{}, malformed("permit name required")
	}
	pub, err := crypto.PublicKeyFromBytes(permit.Signature.PubKey)
	if err != nil {
		return Address{}, malformed("public key: %v", err)
	}
	digest, err := permit.Params.SignBytes()
	if err != nil {
		return Address{}, malformed("encode params: %v", err)
	}
	sig := permit.Signature.Signature
	switch len(sig) {
	case 64:
	case 65:
		normalized := append([]byte(nil), sig...)
		if normalized[64] >= 27 {
			normalized[64] -= 27
		}
		recovered, err := ethcrypto.SigToPub(digest, normalized)
		if err != nil {
			return Address{}, malformed("recover signer: %v", err)
		}
		if !bytes.Equal(ethcrypto.CompressPubkey(recovered), pub.Compressed()) {
			return Address{}, malformed("signature does not match declared public key")
		}
	default:
		return Address{}, malformed("signature must be 64 or 65 bytes, got %d", len(sig))
	}
	if !ethcrypto.VerifySignature(pub.Compressed(), digest, sig[:64]) {
		return Address{}, malformed("signature verification failed")
	}
	owner := pub.Address().Raw()

	if permit.Params.ChainID != cfg.ChainID {
		return Address{}, malformed("chain id %q does not match %q", permit.Params.ChainID, cfg.ChainID)
	}
	bound := false
	for _, token := range permit.Params.AllowedTokens {
		addr, err := crypto.ParseAddress(strings.TrimSpace(token))
		if err != nil {
			return Address{}, malformed("allowed token %q: %v", token, err)
		}
		if addr.Raw() == cfg.Contract {
			bound = true
		}
	}
	if !bound {
		return Address{}, malformed("permit does not apply to this contract")
	}

	revoked, err := creds.isRevoked(owner, permit.Params.PermitName)
	if err != nil {
		return Address{}, err
	}
	if revoked {
		return Address{}, fmt.Errorf("%w: permit %q revoked", ErrUnauthorized, permit.Params.PermitName)
	}
	return owner, nil
}
