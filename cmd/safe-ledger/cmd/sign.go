package cmd

import (
	"fmt"
	"os"

	"safe-ledger/internal/service/signing"
	"safe-ledger/pkg/config"
	"safe-ledger/pkg/errno"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "离线签名 Safe 交易 (Offline Signing)",
	Long: `读取 extend 生成的文档，用本地 Keystore 或 foundry (cast wallet) 账户
为属于自己的签名位置签名，其余内容保持不变。`,
	Example: `  safe-ledger sign -i extended.json --keystore wallet.json
  safe-ledger sign -i extended.json --cast-account deployer`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, _ := cmd.Flags().GetString("input")
		outputFile, _ := cmd.Flags().GetString("output")
		keystoreFile, _ := cmd.Flags().GetString("keystore")
		path, _ := cmd.Flags().GetString("path")
		castAccount, _ := cmd.Flags().GetString("cast-account")
		ctx := cmd.Context()

		if outputFile == "" {
			outputFile = inputFile
		}
		if keystoreFile == "" {
			keystoreFile = config.Global.Signer.KeystorePath
		}
		if path == "" {
			path = config.Global.Signer.DerivationPath
		}

		doc, err := loadBatch(inputFile)
		if err != nil {
			return err
		}
		txs, err := doc.Extended()
		if err != nil {
			return err
		}

		var signer signing.Signer
		if castAccount != "" {
			signer = signing.NewCastSigner(config.Global.Signer.CastBinary, castAccount, config.Global.Signer.Password)
		} else {
			password, err := readPassword(cmd, "请输入 Keystore 密码以确认签名: ")
			if err != nil {
				return err
			}
			signer, err = signing.NewKeystoreSigner(keystoreFile, password, path)
			if err != nil {
				return err
			}
		}
		addr, err := signer.Address(ctx)
		if err != nil {
			return err
		}

		// 显示交易详情供用户确认 (Verify on Screen)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "签名地址: %s\n", addr.Hex())
		fmt.Fprintln(out, "================ 待签名交易 ================")
		for i, tx := range txs {
			mine := false
			for _, slot := range tx.Signatures {
				mine = mine || slot.Signer == addr
			}
			if !mine {
				continue
			}
			fmt.Fprintf(out, "[%d] safe %s nonce %d\n    to %s value %s data %d bytes\n    safeTxHash %s\n",
				i, tx.From.Hex(), tx.Nonce, tx.To.Hex(), formatEther(tx.Value), len(tx.Data), tx.SafeTxHash.Hex())
		}
		fmt.Fprintln(out, "============================================")

		n, err := signing.SignBatch(ctx, txs, signer)
		if err != nil {
			return err
		}
		if err := doc.ApplySignatures(txs); err != nil {
			return err
		}
		if err := writeJSON(outputFile, doc); err != nil {
			return err
		}
		fmt.Fprintf(out, "已签名 %d 笔交易 -> %s\n", n, outputFile)
		return nil
	},
}

// readPassword 优先使用配置 (SAFE_LEDGER_SIGNER_PASSWORD)，否则在终端输入
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if config.Global.Signer.Password != "" {
		return config.Global.Signer.Password, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", errno.Wrap(errno.ErrKeystore, err, "读取密码失败")
	}
	return string(bytePassword), nil
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringP("input", "i", "", "extend 生成的待签名文档")
	signCmd.Flags().StringP("output", "o", "", "输出文件 (默认覆盖输入文件)")
	signCmd.Flags().String("keystore", "", "Keystore 文件 (默认 signer.keystore_path)")
	signCmd.Flags().String("path", "", "派生路径 (默认 signer.derivation_path)")
	signCmd.Flags().String("cast-account", "", "使用 foundry keystore 账户签名 (cast wallet)")
	signCmd.MarkFlagRequired("input")
	signCmd.MarkFlagsMutuallyExclusive("keystore", "cast-account")
}
