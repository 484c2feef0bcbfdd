package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"safe-ledger/pkg/crypto_util"

	"golang.org/x/crypto/scrypt"
)

// EncryptedKeyJSON 沿用 Ethereum Keystore V3 的结构风格，但存储的是助记词而不是单个私钥，
// 同一个文件可以按不同派生路径签名
type EncryptedKeyJSON struct {
	Address string     `json:"address,omitempty"` // 默认路径对应的地址，仅用于展示
	Path    string     `json:"path,omitempty"`    // 创建时使用的派生路径
	Crypto  CryptoJSON `json:"crypto"`
	Id      string     `json:"id"`      // UUID
	Version int        `json:"version"` // 3
}

type CryptoJSON struct {
	Cipher       string       `json:"cipher"`       // "aes-256-gcm"
	CipherText   string       `json:"ciphertext"`   // Hex string
	CipherParams CipherParams `json:"cipherparams"` // IV
	KDF          string       `json:"kdf"`          // "scrypt"
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"` // Hex string
}

type CipherParams struct {
	IV string `json:"iv"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

const (
	StandardScryptN = 1 << 18
	// LightScryptN 与 geth 的 light 参数一致，适合测试和低配机器
	LightScryptN = 1 << 12

	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32

	cipherName = "aes-256-gcm"
	kdfName    = "scrypt"
)

var ErrMACMismatch = errors.New("invalid password or corrupted data (MAC mismatch)")

// EncryptMnemonic 使用标准 scrypt 参数加密助记词
func EncryptMnemonic(mnemonic, password string) (*EncryptedKeyJSON, error) {
	return EncryptMnemonicN(mnemonic, password, StandardScryptN)
}

// EncryptMnemonicN 使用指定的 scrypt N 加密助记词
func EncryptMnemonicN(mnemonic, password string, scryptN int) (*EncryptedKeyJSON, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(derivedKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(mnemonic), nil)

	id, err := generateUUID()
	if err != nil {
		return nil, err
	}

	return &EncryptedKeyJSON{
		Version: 3,
		Id:      id,
		Crypto: CryptoJSON{
			Cipher:       cipherName,
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(nonce)},
			KDF:          kdfName,
			KDFParams: KDFParams{
				DKLen: scryptDKLen,
				N:     scryptN,
				R:     scryptR,
				P:     scryptP,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac(derivedKey, ciphertext)),
		},
	}, nil
}

// DecryptMnemonic 解密 Keystore JSON 获取助记词
func DecryptMnemonic(keyJSON *EncryptedKeyJSON, password string) (string, error) {
	c := keyJSON.Crypto
	if c.Cipher != cipherName || c.KDF != kdfName {
		return "", fmt.Errorf("unsupported cipher %q / kdf %q", c.Cipher, c.KDF)
	}
	if c.KDFParams.DKLen != scryptDKLen {
		return "", fmt.Errorf("unsupported dklen %d", c.KDFParams.DKLen)
	}

	salt, err := hex.DecodeString(c.KDFParams.Salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %v", err)
	}
	nonce, err := hex.DecodeString(c.CipherParams.IV)
	if err != nil {
		return "", fmt.Errorf("invalid iv: %v", err)
	}
	ciphertext, err := hex.DecodeString(c.CipherText)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %v", err)
	}
	wantMAC, err := hex.DecodeString(c.MAC)
	if err != nil {
		return "", fmt.Errorf("invalid mac: %v", err)
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, c.KDFParams.N, c.KDFParams.R, c.KDFParams.P, c.KDFParams.DKLen)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare(wantMAC, mac(derivedKey, ciphertext)) != 1 {
		return "", ErrMACMismatch
	}

	gcm, err := newGCM(derivedKey)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("invalid iv length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %v", err)
	}
	return string(plaintext), nil
}

// SaveToFile 保存到文件，权限 0600
func (k *EncryptedKeyJSON) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0600)
}

// LoadFromFile 从文件加载
func LoadFromFile(filename string) (*EncryptedKeyJSON, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var k EncryptedKeyJSON
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("decode keystore %s: %w", filename, err)
	}
	return &k, nil
}

// --- Helpers ---

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// mac = keccak256(derivedKey[16:32] ‖ ciphertext)，与 V3 keystore 相同
func mac(derivedKey, ciphertext []byte) []byte {
	return crypto_util.Keccak256(derivedKey[16:32], ciphertext)
}

func generateUUID() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:]), nil
}
