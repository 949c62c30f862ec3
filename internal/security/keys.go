package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
)

type RSAKey struct {
	Kid     string
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// KeyManager holds the active signing key plus an optional next key staged
// for rotation. Verification accepts either, selected by kid.
type KeyManager struct {
	Active *RSAKey
	Next   *RSAKey
	byKid  map[string]*rsa.PublicKey
}

func LoadPrivateKeyPEM(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("invalid PEM")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not RSA key")
		}
		return rk, nil
	default:
		return nil, errors.New("unsupported key type: " + block.Type)
	}
}

func NewKeyManager(activeKid, activePath, nextKid, nextPath string) (*KeyManager, error) {
	actPriv, err := LoadPrivateKeyPEM(activePath)
	if err != nil {
		return nil, err
	}
	km := &KeyManager{
		Active: &RSAKey{Kid: activeKid, Private: actPriv, Public: &actPriv.PublicKey},
		byKid:  map[string]*rsa.PublicKey{activeKid: &actPriv.PublicKey},
	}
	if nextKid != "" && nextPath != "" {
		nxtPriv, err := LoadPrivateKeyPEM(nextPath)
		if err != nil {
			return nil, err
		}
		km.Next = &RSAKey{Kid: nextKid, Private: nxtPriv, Public: &nxtPriv.PublicKey}
		km.byKid[nextKid] = &nxtPriv.PublicKey
	}
	return km, nil
}

// NewKeyManagerFromKey wires an already generated key, used by dev mode and
// tests where no PEM files exist on disk.
func NewKeyManagerFromKey(kid string, priv *rsa.PrivateKey) *KeyManager {
	return &KeyManager{
		Active: &RSAKey{Kid: kid, Private: priv, Public: &priv.PublicKey},
		byKid:  map[string]*rsa.PublicKey{kid: &priv.PublicKey},
	}
}

// jwk is the minimal RFC 7517 field set for an RSA signing key.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKS struct {
	Keys []jwk `json:"keys"`
}

func (km *KeyManager) JWKS() JWKS {
	out := []jwk{}
	add := func(k *RSAKey) {
		if k == nil {
			return
		}
		n := base64.RawURLEncoding.EncodeToString(k.Public.N.Bytes())
		e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.Public.E)).Bytes())
		out = append(out, jwk{Kty: "RSA", Kid: k.Kid, Use: "sig", Alg: "RS256", N: n, E: e})
	}
	add(km.Active)
	add(km.Next)
	return JWKS{Keys: out}
}

func (km *KeyManager) PublicByKid(kid string) (*rsa.PublicKey, bool) {
	pk, ok := km.byKid[kid]
	return pk, ok
}
