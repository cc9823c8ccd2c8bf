// Package jwtkit signs the application's own access tokens and exposes the
// matching public keys as a JWKS document. The rest of the system treats it
// as an opaque token service.
package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Signer signs a claim set and returns a compact JWT.
type Signer interface {
	Sign(ctx context.Context, claims map[string]any) (string, error)
	KID() string
}

// RSASigner signs RS256 tokens with a single keypair identified by kid.
type RSASigner struct {
	kid string
	key *rsa.PrivateKey
}

// NewRSASigner generates a fresh keypair. Intended for development and tests;
// production deployments load a persisted key via NewRSASignerFromPEM.
func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits < 2048 {
		return nil, errors.New("jwtkit: refusing RSA key shorter than 2048 bits")
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{kid: kid, key: key}, nil
}

// NewRSASignerFromPEM loads a PKCS#1 or PKCS#8 encoded RSA private key.
func NewRSASignerFromPEM(pemBytes []byte, kid string) (*RSASigner, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("jwtkit: no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &RSASigner{kid: kid, key: key}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtkit: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtkit: private key is not RSA")
	}
	return &RSASigner{kid: kid, key: key}, nil
}

func (s *RSASigner) KID() string { return s.kid }

// PublicKey exposes the verification half for JWKS publication.
func (s *RSASigner) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

// PrivateKeyPEM serializes the signing key as PKCS#1 PEM, the format
// NewRSASignerFromPEM accepts back.
func (s *RSASigner) PrivateKeyPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(s.key),
	})
}

func (s *RSASigner) Sign(ctx context.Context, claims map[string]any) (string, error) {
	_ = ctx
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(claims))
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.key)
}
