package helpers

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
)

func ParseCertificate(cert string) (*x509.Certificate, error) {
	certDERBlock, _ := pem.Decode([]byte(cert))
	if certDERBlock == nil {
		return nil, errors.New("no PEM block found")
	}

	return x509.ParseCertificate(certDERBlock.Bytes)
}

// ParseCertificateChain decodes every CERTIFICATE block in the given PEM
// bundle, leaf first.
func ParseCertificateChain(chain string) ([]*x509.Certificate, error) {
	certs := []*x509.Certificate{}
	rest := []byte(chain)

	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}

		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, errors.New("no certificates found in chain")
	}

	return certs, nil
}

func ReadPrivateKeyFromFile(filePath string) (crypto.Signer, error) {
	keyFileBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return ParsePrivateKey(keyFileBytes)
}

func ParsePrivateKey(privKeyBytes []byte) (crypto.Signer, error) {
	keyDERBlock, _ := pem.Decode(privKeyBytes)
	if keyDERBlock == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(keyDERBlock.Bytes); err == nil {
		return key, nil
	}

	if key, err := x509.ParseECPrivateKey(keyDERBlock.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(keyDERBlock.Bytes)
	if err != nil {
		return nil, err
	}

	switch key := key.(type) {
	case *rsa.PrivateKey:
		return key, nil
	case *ecdsa.PrivateKey:
		return key, nil
	default:
		return nil, errors.New("unsupported key type")
	}
}
