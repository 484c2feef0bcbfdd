package cmd

import (
	"fmt"

	"safe-ledger/internal/service/flattener"

	"github.com/spf13/cobra"
)

var flattenCmd = &cobra.Command{
	Use:   "flatten",
	Short: "生成提交用的 flat 交易列表",
	Long:  `读取 collate 生成的文档，只输出带有 collated-signature 的交易。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, _ := cmd.Flags().GetString("input")
		outputFile, _ := cmd.Flags().GetString("output")
		strict, _ := cmd.Flags().GetBool("strict")

		doc, err := loadBatch(inputFile)
		if err != nil {
			return err
		}
		txs, err := doc.Collated()
		if err != nil {
			return err
		}
		flat, err := flattener.New(strict).Flatten(txs)
		if err != nil {
			return err
		}
		if err := writeJSON(outputFile, flat); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d/%d 笔交易 -> %s\n", len(flat), len(txs), outputFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flattenCmd)
	flattenCmd.Flags().StringP("input", "i", "", "collate 生成的文档")
	flattenCmd.Flags().StringP("output", "o", "flat.json", "输出文件")
	flattenCmd.Flags().Bool("strict", false, "存在未达到阈值的交易时失败")
	flattenCmd.MarkFlagRequired("input")
}
