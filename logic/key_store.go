package logic

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fedipress/dal"
	"fedipress/shared"
	"fmt"
	"sync"
	"time"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_key_store.go -package mocks fedipress/logic IKeyStore

type IKeyStore interface {
	// GetPrivKey retrieves and decrypts the private key of a local actor.
	GetPrivKey(handle string) (*rsa.PrivateKey, error)
	// EnsureKeyPair generates and stores a key pair for the actor if it has
	// none yet; always returns the actor's public key PEM.
	EnsureKeyPair(handle string) (pubKey string, err error)
	// MakeKeyPair generates a new pair; public key is PKIX PEM, private key
	// is encrypted PKCS#1 PEM.
	MakeKeyPair() (pubKey, privKey string, err error)
}

type keyStore struct {
	cfg    *shared.Config
	logger shared.ILogger
	repo   dal.IRepo
	muGen  sync.Mutex
}

func NewKeyStore(cfg *shared.Config, logger shared.ILogger, repo dal.IRepo) IKeyStore {
	return &keyStore{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
	}
}

func (ks *keyStore) MakeKeyPair() (pubKey, privKey string, err error) {

	pubKey = ""
	privKey = ""
	err = nil

	var key *rsa.PrivateKey
	if key, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		err = fmt.Errorf("failed to generate RSA key pair: %v", err)
		return
	}

	// Private key: PKCS#1, encrypted with the configured passphrase
	privBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	//goland:noinspection GoDeprecation
	privBlock, err = x509.EncryptPEMBlock(rand.Reader, privBlock.Type, privBlock.Bytes,
		[]byte(ks.cfg.Secrets.PrivKeyPass), x509.PEMCipherAES256)
	if err != nil {
		err = fmt.Errorf("failed to encrypt private key: %v", err)
		return
	}
	privKey = string(pem.EncodeToMemory(privBlock))

	// Public key: PKIX, so remote servers can parse it
	var pubBytes []byte
	if pubBytes, err = x509.MarshalPKIXPublicKey(&key.PublicKey); err != nil {
		err = fmt.Errorf("failed to marshal public key: %v", err)
		return
	}
	pubBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	}
	pubKey = string(pem.EncodeToMemory(pubBlock))

	return
}

func (ks *keyStore) GetPrivKey(handle string) (*rsa.PrivateKey, error) {

	privPem, err := ks.repo.GetPrivKey(handle)
	if err != nil {
		return nil, err
	}
	if privPem == "" {
		return nil, fmt.Errorf("actor '%s' has no private key", handle)
	}

	block, _ := pem.Decode([]byte(privPem))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block of private key for '%s'", handle)
	}
	//goland:noinspection GoDeprecation
	der, err := x509.DecryptPEMBlock(block, []byte(ks.cfg.Secrets.PrivKeyPass))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key for '%s': %v", handle, err)
	}
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key for '%s': %v", handle, err)
	}
	return key, nil
}

func (ks *keyStore) EnsureKeyPair(handle string) (string, error) {

	// Serializes concurrent first-use generation for the same actor.
	// If another instance won the race in the DB, the stored pair wins.
	ks.muGen.Lock()
	defer ks.muGen.Unlock()

	actor, err := ks.repo.GetActor(handle)
	if err != nil {
		return "", err
	}
	if actor == nil {
		return "", fmt.Errorf("no such actor: '%s'", handle)
	}
	if actor.PubKey != "" {
		return actor.PubKey, nil
	}

	ks.logger.Infof("Generating key pair for actor '%s'", handle)
	start := time.Now()
	pubKey, privKey, err := ks.MakeKeyPair()
	if err != nil {
		return "", err
	}
	ks.logger.Debugf("Key pair done in %v", time.Since(start))

	updated, err := ks.repo.SetActorKeysIfAbsent(handle, pubKey, privKey)
	if err != nil {
		return "", err
	}
	if !updated {
		actor, err = ks.repo.GetActor(handle)
		if err != nil {
			return "", err
		}
		return actor.PubKey, nil
	}
	return pubKey, nil
}
