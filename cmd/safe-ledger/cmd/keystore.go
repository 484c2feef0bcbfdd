package cmd

import (
	"fmt"
	"os"

	"safe-ledger/internal/service/signing"
	"safe-ledger/pkg/bip32"
	"safe-ledger/pkg/bip39"
	"safe-ledger/pkg/config"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/keystore"

	"github.com/spf13/cobra"
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "管理签名用的 Keystore",
}

var keystoreNewCmd = &cobra.Command{
	Use:   "new",
	Short: "初始化一个新的签名钱包 (生成助记词并加密保存)",
	Long:  `生成新的 BIP-39 助记词，并使用用户输入的密码进行加密，保存为 Keystore 文件。打印的地址需要加入 Safe 的 owners。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, _ := cmd.Flags().GetString("output")
		words, _ := cmd.Flags().GetInt("words")
		path, _ := cmd.Flags().GetString("path")
		light, _ := cmd.Flags().GetBool("light")
		out := cmd.OutOrStdout()

		if _, err := os.Stat(outputFile); err == nil {
			return errno.New(errno.ErrWriteFile, "文件 %s 已存在。请先删除或指定其他文件名", outputFile)
		}
		if path == "" {
			path = config.Global.Signer.DerivationPath
		}
		if _, err := bip32.ParsePath(path); err != nil {
			return errno.Wrap(errno.ErrKeystore, err, "derivation path")
		}
		var bits int
		switch words {
		case 12:
			bits = 128
		case 24:
			bits = 256
		default:
			return errno.New(errno.ErrKeystore, "--words 只支持 12 或 24")
		}

		password, err := readPassword(cmd, "输入密码: ")
		if err != nil {
			return err
		}
		if config.Global.Signer.Password == "" {
			confirm, err := readPassword(cmd, "确认密码: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errno.New(errno.ErrKeystore, "两次输入的密码不一致")
			}
		}
		if len(password) < 6 {
			return errno.New(errno.ErrKeystore, "密码长度至少需要 6 位")
		}

		mnemonic, err := bip39.Generate(bits)
		if err != nil {
			return errno.Wrap(errno.ErrKeystore, err, "generate mnemonic")
		}
		signer, err := signing.NewMnemonicSigner(mnemonic, path)
		if err != nil {
			return err
		}
		addr, err := signer.Address(cmd.Context())
		if err != nil {
			return err
		}

		scryptN := keystore.StandardScryptN
		if light {
			scryptN = keystore.LightScryptN
		}
		encryptedKey, err := keystore.EncryptMnemonicN(mnemonic, password, scryptN)
		if err != nil {
			return errno.Wrap(errno.ErrKeystore, err, "encrypt")
		}
		encryptedKey.Address = addr.Hex()
		encryptedKey.Path = path
		if err := encryptedKey.SaveToFile(outputFile); err != nil {
			return errno.Wrap(errno.ErrWriteFile, err, "%s", outputFile)
		}

		fmt.Fprintln(out, "---------------------------------------------------")
		fmt.Fprintf(out, "助记词 (Mnemonic): \n%s\n", mnemonic)
		fmt.Fprintln(out, "---------------------------------------------------")
		fmt.Fprintf(out, "签名地址 [%s]: %s\n", path, addr.Hex())
		fmt.Fprintf(out, "Keystore 已保存到 %s\n", outputFile)
		fmt.Fprintln(out, "请妥善保管您的助记词！任何拥有助记词的人都可以以该 owner 身份签名。")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keystoreCmd)
	keystoreCmd.AddCommand(keystoreNewCmd)
	keystoreNewCmd.Flags().StringP("output", "o", "wallet.json", "Keystore 输出文件")
	keystoreNewCmd.Flags().Int("words", 12, "助记词单词数: 12 | 24")
	keystoreNewCmd.Flags().String("path", "", "派生路径 (默认 signer.derivation_path)")
	keystoreNewCmd.Flags().Bool("light", false, "使用较弱的 scrypt 参数 (仅用于测试)")
}
