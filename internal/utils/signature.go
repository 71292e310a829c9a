package utils

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// GenerateLoginMessage builds the text a wallet signs to prove ownership of address.
func GenerateLoginMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to Pool as %s\n\nNonce: %s", strings.ToLower(address), nonce)
}

// RecoverAddress recovers the Ethereum address that produced a personal_sign signature over message
func RecoverAddress(signature, message string) (string, error) {
	if !strings.HasPrefix(signature, "0x") {
		return "", fmt.Errorf("signature must start with 0x")
	}

	sigBytes := strings.TrimPrefix(signature, "0x")
	if len(sigBytes) != 130 { // 65 bytes * 2 hex chars = 130
		return "", fmt.Errorf("signature must be 65 bytes (130 hex characters)")
	}

	sigData, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}

	messageHash := accounts.TextHash([]byte(message))

	// Wallets return v as 27/28, go-ethereum expects 0/1
	if sigData[64] >= 27 {
		sigData[64] -= 27
	}

	publicKey, err := crypto.SigToPub(messageHash, sigData)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*publicKey).Hex(), nil
}

// VerifyPersonalSignature verifies that a signature was created for the given message by the given address.
func VerifyPersonalSignature(message string, signature string, signerAddress string) (bool, error) {
	if message == "" {
		return false, fmt.Errorf("message cannot be empty")
	}
	if signature == "" {
		return false, fmt.Errorf("signature cannot be empty")
	}
	if signerAddress == "" {
		return false, fmt.Errorf("signer address cannot be empty")
	}

	if !common.IsHexAddress(signerAddress) {
		return false, fmt.Errorf("invalid signer address format: %s", signerAddress)
	}

	recoveredAddress, err := RecoverAddress(signature, message)
	if err != nil {
		return false, fmt.Errorf("failed to recover address from signature: %w", err)
	}

	return strings.EqualFold(recoveredAddress, signerAddress), nil
}

func personalSign(message string, privateKey *ecdsa.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("private key cannot be nil")
	}
	if message == "" {
		return "", fmt.Errorf("message cannot be empty")
	}

	signature, err := crypto.Sign(accounts.TextHash([]byte(message)), privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	return "0x" + hex.EncodeToString(signature), nil
}

// PersonalSignFromHex signs a message using a private key provided as a hex string.
func PersonalSignFromHex(message string, privateKeyHex string) (string, error) {
	if privateKeyHex == "" {
		return "", fmt.Errorf("private key hex cannot be empty")
	}

	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}

	return personalSign(message, privateKey)
}

// ParsePrivateKey parses a hex private key with or without the 0x prefix.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex format: %w", err)
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return privateKey, nil
}
