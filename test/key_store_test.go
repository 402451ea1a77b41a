package test

import (
	"crypto/x509"
	"encoding/pem"
	"fedipress/logic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStore_MakeKeyPair(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	keyStore := logic.NewKeyStore(cfg, logger, repo)

	pubKey, privKey, err := keyStore.MakeKeyPair()
	require.NoError(t, err)

	// Public key parses as PKIX, the format remote servers expect
	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(t, block)
	assert.Equal(t, "PUBLIC KEY", block.Type)
	_, err = x509.ParsePKIXPublicKey(block.Bytes)
	assert.NoError(t, err)

	// Private key is encrypted at rest
	block, _ = pem.Decode([]byte(privKey))
	require.NotNil(t, block)
	//goland:noinspection GoDeprecation
	assert.True(t, x509.IsEncryptedPEMBlock(block))
	_, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	assert.Error(t, err)
}

func TestKeyStore_EnsureKeyPairIsStable(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	keyStore := logic.NewKeyStore(cfg, logger, repo)

	pubKey1, err := keyStore.EnsureKeyPair("blog")
	require.NoError(t, err)
	assert.NotEmpty(t, pubKey1)

	// Second call returns the stored pair, never a new one
	pubKey2, err := keyStore.EnsureKeyPair("blog")
	require.NoError(t, err)
	assert.Equal(t, pubKey1, pubKey2)

	privKey, err := keyStore.GetPrivKey("blog")
	require.NoError(t, err)
	assert.NotNil(t, privKey)
	assert.NoError(t, privKey.Validate())
}
