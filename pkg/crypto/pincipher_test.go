// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidianbank/ussd-gateway/pkg/config"
)

const (
	testKey = "0123456789abcdef0123456789abcdef" // 32 raw bytes
	testIV  = "abcdef9876543210"                 // 16 raw bytes
)

func encryptForTest(t *testing.T, plain string) string {
	t.Helper()

	block, err := aes.NewCipher([]byte(testKey))
	require.NoError(t, err)

	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := []byte(plain)
	for i := 0; i < pad; i++ {
		padded = append(padded, byte(pad))
	}

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(testIV)).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

func TestPinCipherRoundTrip(t *testing.T) {
	t.Parallel()

	pc, err := NewPinCipher(config.Crypto{EncryptionKey: testKey, IVKey: testIV})
	require.NoError(t, err)

	for _, pin := range []string{"1234", "123456", "0000"} {
		got, err := pc.Decrypt(encryptForTest(t, pin))
		require.NoError(t, err)
		assert.Equal(t, pin, got)
	}
}

func TestPinCipherDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	pc, err := NewPinCipher(config.Crypto{PinDecryptionDisabled: true})
	require.NoError(t, err)
	assert.True(t, pc.Disabled())

	got, err := pc.Decrypt("1234")
	require.NoError(t, err)
	assert.Equal(t, "1234", got)
}

func TestPinCipherRejectsBadKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.Crypto
	}{
		{name: "missing key", cfg: config.Crypto{IVKey: testIV}},
		{name: "short key", cfg: config.Crypto{EncryptionKey: "tooshort", IVKey: testIV}},
		{name: "missing iv", cfg: config.Crypto{EncryptionKey: testKey}},
		{name: "short iv", cfg: config.Crypto{EncryptionKey: testKey, IVKey: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewPinCipher(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestPinCipherRejectsGarbage(t *testing.T) {
	t.Parallel()

	pc, err := NewPinCipher(config.Crypto{EncryptionKey: testKey, IVKey: testIV})
	require.NoError(t, err)

	_, err = pc.Decrypt("not base64 !!!")
	assert.Error(t, err)

	_, err = pc.Decrypt(base64.StdEncoding.EncodeToString([]byte("odd")))
	assert.Error(t, err)
}
