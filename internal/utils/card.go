package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// GenerateCardNumber generates a card number with the specified prefix and length
func GenerateCardNumber(prefix string, length int) (string, error) {
	if length < len(prefix) || length > 19 {
		return "", fmt.Errorf("invalid card number length: %d", length)
	}

	digits := make([]byte, length-len(prefix))
	if _, err := rand.Read(digits); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(prefix)
	for _, b := range digits {
		builder.WriteByte(b%10 + '0')
	}
	return builder.String(), nil
}

// GenerateExpiryDate generates a card expiry date (MM/YY)
func GenerateExpiryDate() string {
	now := time.Now()
	year := now.Year() + 3 // Cards valid for 3 years
	return fmt.Sprintf("%02d/%02d", now.Month(), year%100)
}

// GenerateCVV generates a 3-digit CVV code
func GenerateCVV() string {
	b := make([]byte, 3)
	rand.Read(b)
	return fmt.Sprintf("%03d", (int(b[0])%10)*100+(int(b[1])%10)*10+int(b[2])%10)
}

// GenerateHMAC generates an integrity tag over the card details
func GenerateHMAC(cardNumber, expiryDate, cvv, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(cardNumber + expiryDate + cvv))
	return hex.EncodeToString(h.Sum(nil))
}

// Encrypt encrypts a string with AES-CBC and PKCS#7 padding, returning
// hex(iv || ciphertext). The key must be 16, 24, or 32 bytes.
func Encrypt(data string, key []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("input data is empty")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	padding := aes.BlockSize - len(data)%aes.BlockSize
	padded := append([]byte(data), bytes.Repeat([]byte{byte(padding)}, padding)...)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encryptedData string, key []byte) (string, error) {
	data, err := hex.DecodeString(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	if len(data) < aes.BlockSize {
		return "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}

	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("invalid ciphertext length: %d bytes", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	padding := int(plaintext[len(plaintext)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(plaintext) {
		return "", fmt.Errorf("invalid padding value: %d", padding)
	}
	for i := len(plaintext) - padding; i < len(plaintext); i++ {
		if int(plaintext[i]) != padding {
			return "", fmt.Errorf("invalid padding byte at position %d", i)
		}
	}
	return string(plaintext[:len(plaintext)-padding]), nil
}
