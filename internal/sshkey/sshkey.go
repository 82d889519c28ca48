// Package sshkey generates SSH key pairs for job container access.
package sshkey

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// DefaultBits is the RSA key size used for job key pairs.
const DefaultBits = 2048

// KeyPair holds a generated key pair: the public key in authorized_keys
// format and the private key in PEM format.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// Generate creates an RSA key pair. SSH access is a convenience feature:
// callers treat any error here as best-effort and never fail the operation.
func Generate(bits int) (*KeyPair, error) {
	if bits <= 0 {
		bits = DefaultBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}

	private := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	publicKey, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("serialize public key: %w", err)
	}

	return &KeyPair{
		Public:  ssh.MarshalAuthorizedKey(publicKey),
		Private: private,
	}, nil
}
