package dh

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// Generate a new P-256 key pair for ECDH key agreement.
func NewP256KeyPair() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return priv, nil
}

// SharedSecret performs ECDH between our private key and their public key.
// The result is order-independent: deriving from either side yields the same
// bytes.
func SharedSecret(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) ([]byte, error) {
	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	return secret, nil
}

// ExportPublicKey encodes a public key as base64 SPKI.
func ExportPublicKey(pub *ecdh.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal spki: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ExportPrivateKey encodes a private key as base64 PKCS#8.
func ExportPrivateKey(priv *ecdh.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshal pkcs8: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ImportPublicKey decodes a base64 SPKI public key.
func ImportPublicKey(spkiB64 string) (*ecdh.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(spkiB64)
	if err != nil {
		return nil, fmt.Errorf("decode spki base64: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse spki: %w", err)
	}
	ecKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", parsed)
	}
	pub, err := ecKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("convert to ecdh: %w", err)
	}
	return pub, nil
}

// ImportPrivateKey decodes a base64 PKCS#8 private key.
func ImportPrivateKey(pkcs8B64 string) (*ecdh.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(pkcs8B64)
	if err != nil {
		return nil, fmt.Errorf("decode pkcs8 base64: %w", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse pkcs8: %w", err)
	}
	ecKey, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected private key type %T", parsed)
	}
	priv, err := ecKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("convert to ecdh: %w", err)
	}
	return priv, nil
}
