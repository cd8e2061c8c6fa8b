package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	recoveryCodeLength   = 10
	recoveryCodeCount    = 10
	recoveryCodeSaltSize = 16
)

func GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, recoveryCodeCount)
	for i := range recoveryCodeCount {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

func generateRecoveryCode() (string, error) {
	codeBytes := make([]byte, 6)
	if _, err := rand.Read(codeBytes); err != nil {
		return "", err
	}
	hexString := hex.EncodeToString(codeBytes)
	return hexString[:recoveryCodeLength], nil
}

func FormatRecoveryCode(code string) string {
	if len(code) != recoveryCodeLength {
		return code
	}
	return code[:5] + "-" + code[5:]
}

func NormalizeRecoveryCode(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "-", ""))
}

func HashRecoveryCode(code string) (salt []byte, hash []byte, err error) {
	salt = make([]byte, recoveryCodeSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash = recoveryCodeHash(NormalizeRecoveryCode(code), salt)
	return salt, hash, nil
}

func VerifyRecoveryCode(code string, salt []byte, hash []byte) bool {
	candidate := recoveryCodeHash(NormalizeRecoveryCode(code), salt)
	return subtle.ConstantTimeCompare(hash, candidate) == 1
}

func recoveryCodeHash(normalized string, salt []byte) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(normalized))
	return h.Sum(nil)
}
