package cmd

import (
	"fmt"

	"safe-ledger/internal/service/extender"

	"github.com/spf13/cobra"
)

var extendCmd = &cobra.Command{
	Use:   "extend",
	Short: "为 dry-run 交易分配 nonce 并生成 Safe 待签名文档",
	Long: `读取 foundry 广播文件和 safe 元数据，为每笔交易分配 Safe nonce，
计算 EIP-712 safeTxHash，并为每个 owner 预留签名位置。`,
	Example: `  safe-ledger extend -i broadcast/run-latest.json -s safes.json -o extended.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, _ := cmd.Flags().GetString("input")
		safesFile, _ := cmd.Flags().GetString("safes")
		outputFile, _ := cmd.Flags().GetString("output")
		ctx := cmd.Context()

		doc, err := loadBatch(inputFile)
		if err != nil {
			return err
		}
		reg, cleanup, err := loadRegistry(ctx, safesFile)
		if err != nil {
			return err
		}
		defer cleanup()

		txs, err := extender.New(reg).ExtendDocument(ctx, doc)
		if err != nil {
			return err
		}
		if err := writeJSON(outputFile, doc); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, tx := range txs {
			fmt.Fprintf(out, "[%d] safe %s nonce %d threshold %d/%d\n    safeTxHash %s\n",
				i, tx.From.Hex(), tx.Nonce, tx.Threshold, len(tx.Signatures), tx.SafeTxHash.Hex())
		}
		fmt.Fprintf(out, "已扩展 %d 笔交易 -> %s\n", len(txs), outputFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extendCmd)
	extendCmd.Flags().StringP("input", "i", "", "foundry 广播文件 (dry-run 交易列表)")
	extendCmd.Flags().StringP("safes", "s", "", "safe 元数据文件 (owners / nonce / threshold)")
	extendCmd.Flags().StringP("output", "o", "extended.json", "输出文件")
	extendCmd.MarkFlagRequired("input")
	extendCmd.MarkFlagRequired("safes")
}
