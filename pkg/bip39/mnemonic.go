package bip39

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// Generate 生成一个新的随机助记词 (BIP-39)。
// bitSize: 熵的位数，128 (12个单词) 或 256 (24个单词)。
func Generate(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("生成熵失败: %v", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("生成助记词失败: %v", err)
	}
	return mnemonic, nil
}

// Normalize 去掉多余的空白，便于校验从文件或终端读入的助记词
func Normalize(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

func Validate(mnemonic string) bool {
	return bip39.IsMnemonicValid(Normalize(mnemonic))
}

// Seed 将助记词转换为种子，校验和错误的助记词直接拒绝。
// passphrase 为可选的 "第25个单词"，不需要时传 ""。
func Seed(mnemonic, passphrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(Normalize(mnemonic), passphrase)
	if err != nil {
		return nil, fmt.Errorf("无效的助记词: %v", err)
	}
	return seed, nil
}
