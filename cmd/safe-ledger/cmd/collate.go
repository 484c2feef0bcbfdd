package cmd

import (
	"fmt"

	"safe-ledger/internal/service/collator"
	"safe-ledger/internal/service/flattener"

	"github.com/spf13/cobra"
)

var collateCmd = &cobra.Command{
	Use:   "collate",
	Short: "校验签名并在达到阈值时合并为 collated-signature",
	Long: `恢复每个签名的地址并与签名位置比对，无效签名会被丢弃并记录。
达到阈值的交易按签名人地址升序拼接签名，写入 collated-signature。
指定 -f 时同时生成提交用的 flat 文件。
指定 -s 时只统计 safe 元数据中 owner 的签名。`,
	Example: `  safe-ledger collate -i signed.json -o collated.json -f flat.json
  safe-ledger collate -i signed.json -s safes.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, _ := cmd.Flags().GetString("input")
		outputFile, _ := cmd.Flags().GetString("output")
		flatFile, _ := cmd.Flags().GetString("flat")
		strict, _ := cmd.Flags().GetBool("strict")
		safesFile, _ := cmd.Flags().GetString("safes")

		var opts []collator.Option
		if safesFile != "" {
			reg, err := loadOwners(cmd.Context(), safesFile)
			if err != nil {
				return err
			}
			opts = append(opts, collator.WithOwners(reg.Owners))
		}

		doc, err := loadBatch(inputFile)
		if err != nil {
			return err
		}
		txs, err := collator.New(opts...).CollateDocument(doc)
		if err != nil {
			return err
		}

		// flat 文件在写任何输出之前生成，strict 模式失败时不留下部分结果
		var flat any
		if flatFile != "" {
			flat, err = flattener.New(strict).Flatten(txs)
			if err != nil {
				return err
			}
		}
		if err := writeJSON(outputFile, doc); err != nil {
			return err
		}
		if flatFile != "" {
			if err := writeJSON(flatFile, flat); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		complete := 0
		for i, tx := range txs {
			status := "incomplete"
			if tx.Complete() {
				status = "complete"
				complete++
			}
			fmt.Fprintf(out, "[%d] safe %s nonce %d: %d/%d valid, %s\n",
				i, tx.From.Hex(), tx.Nonce, len(tx.Signers), tx.Threshold, status)
			for _, d := range tx.Dropped {
				fmt.Fprintf(out, "    dropped %s: %s\n", d.Signer.Hex(), d.Reason)
			}
		}
		fmt.Fprintf(out, "%d/%d 笔交易达到阈值 -> %s\n", complete, len(txs), outputFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collateCmd)
	collateCmd.Flags().StringP("input", "i", "", "已签名文档")
	collateCmd.Flags().StringP("output", "o", "collated.json", "输出文件")
	collateCmd.Flags().StringP("flat", "f", "", "同时生成 flat 提交文件")
	collateCmd.Flags().StringP("safes", "s", "", "safe 元数据文件，用于核对签名人是否为 owner (可选)")
	collateCmd.Flags().Bool("strict", false, "存在未达到阈值的交易时失败 (仅对 -f 生效)")
	collateCmd.MarkFlagRequired("input")
}
