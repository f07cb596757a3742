package cryptoengines

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

const (
	containerSaltSize  = 16
	containerKDFRounds = 65536
)

type SoftwareCryptoEngine struct {
	logger *logrus.Entry
}

func NewSoftwareCryptoEngine(logger *logrus.Entry) *SoftwareCryptoEngine {
	return &SoftwareCryptoEngine{
		logger: logger,
	}
}

// CreateRSAPrivateKey creates a RSA private key with the specified key size
func (p *SoftwareCryptoEngine) CreateRSAPrivateKey(keySize int) (string, *rsa.PrivateKey, error) {
	lFunc := p.logger.WithField("func", "RSA")
	lFunc.Debugf("creating RSA %d bit key", keySize)
	key, err := rsa.GenerateKey(rand.Reader, keySize)

	if err != nil {
		lFunc.Errorf("could not create RSA key: %s", err)
		return "", nil, err
	}

	encDigest, err := p.EncodePKIXPublicKeyDigest(&key.PublicKey)
	if err != nil {
		lFunc.Errorf("could not encode public key digest: %s", err)
		return "", nil, err
	}

	return encDigest, key, nil
}

func (p *SoftwareCryptoEngine) CreateECDSAPrivateKey(curve elliptic.Curve) (string, *ecdsa.PrivateKey, error) {
	lFunc := p.logger.WithField("func", "ECDSA")
	lFunc.Debugf("creating ECDSA %s key", curve.Params().Name)
	key, err := ecdsa.GenerateKey(curve, rand.Reader)

	if err != nil {
		lFunc.Errorf("could not create ECDSA key: %s", err)
		return "", nil, err
	}

	encDigest, err := p.EncodePKIXPublicKeyDigest(&key.PublicKey)
	if err != nil {
		lFunc.Errorf("could not encode public key digest: %s", err)
		return "", nil, err
	}

	return encDigest, key, nil
}

func (p *SoftwareCryptoEngine) EncodePKIXPublicKeyDigest(key any) (string, error) {
	pubkeyBytes, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		p.logger.Errorf("could not marshal public key: %s", err)
		return "", err
	}

	hash := sha256.New()
	hash.Write(pubkeyBytes)
	digest := hash.Sum(nil)

	return hex.EncodeToString(digest), nil
}

func (p *SoftwareCryptoEngine) MarshalPKIXPrivateKeyPEM(key interface{}) ([]byte, error) {
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		p.logger.Errorf("could not marshal PKIX private key: %s", err)
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: keyBytes,
	}), nil
}

func (p *SoftwareCryptoEngine) ParsePrivateKey(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no key found")
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		genericKey, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			genericKey, err = x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
		}
	}

	switch key := genericKey.(type) {
	case *rsa.PrivateKey:
		return key, nil
	case *ecdsa.PrivateKey:
		return key, nil
	default:
		return nil, errors.New("unsupported key type")
	}
}

// SealPrivateKey wraps a private key into a passphrase-protected container:
// salt || nonce || AES-256-GCM(PKCS#8 DER). The passphrase is stretched with
// PBKDF2-SHA256.
func (p *SoftwareCryptoEngine) SealPrivateKey(key crypto.Signer, passphrase string) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		p.logger.Errorf("could not marshal private key: %s", err)
		return nil, err
	}

	salt := make([]byte, containerSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	gcm, err := p.containerCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, der, nil)

	container := append(salt, nonce...)
	container = append(container, sealed...)
	return container, nil
}

// OpenPrivateKey reverses SealPrivateKey. A wrong passphrase or corrupted
// container fails authentication and returns an error.
func (p *SoftwareCryptoEngine) OpenPrivateKey(container []byte, passphrase string) (crypto.Signer, error) {
	if len(container) < containerSaltSize {
		return nil, errors.New("malformed key container")
	}

	salt := container[:containerSaltSize]
	gcm, err := p.containerCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	rest := container[containerSaltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("malformed key container")
	}

	nonce := rest[:gcm.NonceSize()]
	der, err := gcm.Open(nil, nonce, rest[gcm.NonceSize():], nil)
	if err != nil {
		p.logger.Errorf("could not open key container: %s", err)
		return nil, err
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}

	switch key := genericKey.(type) {
	case *rsa.PrivateKey:
		return key, nil
	case *ecdsa.PrivateKey:
		return key, nil
	default:
		return nil, errors.New("unsupported key type")
	}
}

func (p *SoftwareCryptoEngine) containerCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(passphrase), salt, containerKDFRounds, 32, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
