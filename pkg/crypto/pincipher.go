// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package crypto decrypts PINs that arrive encrypted on the wire.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/sidianbank/ussd-gateway/pkg/config"
)

// PinCipher decrypts AES-CBC encrypted PINs. When decryption is disabled
// (test scaffolding, or an upstream component already decrypts) the input
// passes through untouched.
type PinCipher struct {
	key      []byte
	iv       []byte
	disabled bool
}

// NewPinCipher builds a cipher from the crypto configuration. Missing
// keys with decryption enabled are a startup error.
func NewPinCipher(cfg config.Crypto) (*PinCipher, error) {
	if cfg.PinDecryptionDisabled {
		return &PinCipher{disabled: true}, nil
	}

	key, err := keyBytes(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 16, 24 or 32 bytes, got %d", len(key))
	}

	iv, err := keyBytes(cfg.IVKey)
	if err != nil {
		return nil, fmt.Errorf("invalid IV_KEY: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("IV_KEY must be %d bytes, got %d", aes.BlockSize, len(iv))
	}

	return &PinCipher{key: key, iv: iv}, nil
}

// keyBytes accepts hex-encoded or raw key material.
func keyBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("key is empty")
	}
	if decoded, err := hex.DecodeString(s); err == nil {
		return decoded, nil
	}
	return []byte(s), nil
}

// Disabled reports whether the cipher passes PINs through untouched.
func (p *PinCipher) Disabled() bool {
	return p.disabled
}

// Decrypt decodes a base64 AES-CBC ciphertext and strips PKCS#7 padding.
// In disabled mode the input is returned as-is.
func (p *PinCipher) Decrypt(encoded string) (string, error) {
	if p.disabled {
		return encoded, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("pin ciphertext is not valid base64: %w", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("pin ciphertext length %d is not a multiple of the block size", len(data))
	}

	block, err := aes.NewCipher(p.key)
	if err != nil {
		return "", fmt.Errorf("failed to build cipher: %w", err)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, p.iv).CryptBlocks(plain, data)

	unpadded, err := pkcs7Unpad(plain)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-pad], nil
}
