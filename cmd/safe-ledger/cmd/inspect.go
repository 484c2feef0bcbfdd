package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"safe-ledger/internal/model"
	"safe-ledger/pkg/crypto_util"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "查看任意阶段的批次文件",
	Long: `打印批次中每笔交易的摘要以及文件指纹 (blake3)。
多个签名人可以比对指纹确认签的是同一份文件。指定 -s 时同时打印 safe 元数据和当前 nonce。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile, _ := cmd.Flags().GetString("input")
		safesFile, _ := cmd.Flags().GetString("safes")
		out := cmd.OutOrStdout()

		if safesFile != "" {
			if err := printWallets(cmd, out, safesFile); err != nil {
				return err
			}
		}
		if inputFile == "" {
			return nil
		}

		data, err := readFile(inputFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "文件: %s\n指纹: %s\n", inputFile, crypto_util.Fingerprint(data))

		// flat 文件是数组，其余阶段都是 foundry 文档
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			var flat []model.FlatTransaction
			if err := json.Unmarshal(trimmed, &flat); err != nil {
				return err
			}
			printFlat(out, flat)
			return nil
		}

		doc, err := model.ParseBatch(data)
		if err != nil {
			return err
		}
		printBatch(out, doc)
		return nil
	},
}

func printWallets(cmd *cobra.Command, out io.Writer, path string) error {
	reg, cleanup, err := loadRegistry(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer cleanup()

	wallets, err := reg.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "---------------------------------------------------")
	for _, w := range wallets {
		fmt.Fprintln(out, w.String())
		for _, o := range w.Owners {
			fmt.Fprintf(out, "    owner %s\n", o.Hex())
		}
	}
	fmt.Fprintln(out, "---------------------------------------------------")
	return nil
}

func printBatch(out io.Writer, doc *model.BroadcastBatch) {
	stage := "proposed"
	for i, e := range doc.Transactions {
		t := e.Transaction
		fmt.Fprintf(out, "[%d]", i)
		if t.From != nil {
			fmt.Fprintf(out, " safe %s", t.From.Hex())
		}
		if t.Nonce != nil {
			fmt.Fprintf(out, " nonce %s", t.Nonce.Big())
		}
		fmt.Fprintln(out)
		if t.To != nil {
			fmt.Fprintf(out, "    to %s", t.To.Hex())
		}
		fmt.Fprintf(out, " value %s", formatEther(t.Value.Big()))
		if t.Input != nil {
			fmt.Fprintf(out, " data %d bytes", len(*t.Input))
		}
		fmt.Fprintln(out)

		if e.SafeTxHash == nil {
			continue
		}
		stage = "extended"
		filled := 0
		for _, s := range e.Signatures {
			if !s.Empty() {
				filled++
			}
		}
		threshold := "?"
		if e.Threshold != nil {
			threshold = e.Threshold.Big().String()
		}
		fmt.Fprintf(out, "    safeTxHash %s\n    signatures %d/%d, threshold %s\n",
			e.SafeTxHash.Hex(), filled, len(e.Signatures), threshold)
		if e.CollatedSignature != nil {
			stage = "collated"
			fmt.Fprintf(out, "    collated %d signatures\n", len(*e.CollatedSignature)/65)
		}
	}
	fmt.Fprintf(out, "%d 笔交易, 阶段: %s\n", len(doc.Transactions), stage)
}

func printFlat(out io.Writer, flat []model.FlatTransaction) {
	for i, f := range flat {
		fmt.Fprintf(out, "[%d] safe %s chain %s\n    to %s value %s data %d bytes, %d signatures\n",
			i, f.From, f.ChainID, f.To, formatEther(f.Value), len(f.Data), len(f.Signatures)/65)
	}
	fmt.Fprintf(out, "%d 笔交易, 阶段: flat\n", len(flat))
}

// formatEther 把 wei 转换为 ETH 显示
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0 ETH"
	}
	return decimal.NewFromBigInt(wei, -18).String() + " ETH"
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringP("input", "i", "", "任意阶段的批次文件")
	inspectCmd.Flags().StringP("safes", "s", "", "safe 元数据文件")
}
