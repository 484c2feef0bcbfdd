package keystore

import (
	"errors"
	"path/filepath"
	"testing"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestEncryptDecryptMnemonic(t *testing.T) {
	password := "secure-password"

	keyJSON, err := EncryptMnemonicN(testMnemonic, password, LightScryptN)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}
	if keyJSON.Crypto.Cipher != "aes-256-gcm" {
		t.Errorf("Expected cipher aes-256-gcm, got %s", keyJSON.Crypto.Cipher)
	}
	if keyJSON.Crypto.KDFParams.N != LightScryptN {
		t.Errorf("Expected scrypt N %d, got %d", LightScryptN, keyJSON.Crypto.KDFParams.N)
	}

	plaintext, err := DecryptMnemonic(keyJSON, password)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}
	if plaintext != testMnemonic {
		t.Errorf("Decryption mismatch. Expected %s, got %s", testMnemonic, plaintext)
	}

	_, err = DecryptMnemonic(keyJSON, "wrong-password")
	if !errors.Is(err, ErrMACMismatch) {
		t.Errorf("Expected ErrMACMismatch with wrong password, got %v", err)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	keyJSON, err := EncryptMnemonicN(testMnemonic, "pw", LightScryptN)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	tampered := *keyJSON
	tampered.Crypto.CipherText = "00" + keyJSON.Crypto.CipherText[2:]
	if tampered.Crypto.CipherText == keyJSON.Crypto.CipherText {
		tampered.Crypto.CipherText = "ff" + keyJSON.Crypto.CipherText[2:]
	}
	if _, err := DecryptMnemonic(&tampered, "pw"); err == nil {
		t.Error("Expected error for tampered ciphertext")
	}

	unsupported := *keyJSON
	unsupported.Crypto.Cipher = "aes-128-ctr"
	if _, err := DecryptMnemonic(&unsupported, "pw"); err == nil {
		t.Error("Expected error for unsupported cipher")
	}
}

func TestFileSaveLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "wallet.json")

	keyJSON, err := EncryptMnemonicN(testMnemonic, "123456", LightScryptN)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}
	keyJSON.Address = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

	if err := keyJSON.SaveToFile(filename); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(filename)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Id != keyJSON.Id || loaded.Address != keyJSON.Address {
		t.Errorf("Metadata mismatch after load")
	}

	decrypted, err := DecryptMnemonic(loaded, "123456")
	if err != nil {
		t.Fatalf("Decrypt loaded failed: %v", err)
	}
	if decrypted != testMnemonic {
		t.Errorf("Content mismatch")
	}
}
