package vl1ctl

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/ambereth/vl1/xcrypto"
	"github.com/spf13/cobra"
)

var powCmd = &cobra.Command{
	Use:     "pow",
	Short:   "Compute or verify a VL1 proof-of-work puzzle",
	GroupID: "pow",
}

var powComputeCmd = &cobra.Command{
	Use:   "compute <difficulty> <challenge-hex>",
	Short: "Solves a proof-of-work puzzle and prints the result nonce",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 2 {
			fmt.Println("Usage: vl1ctl pow compute <difficulty> <challenge-hex>")
			os.Exit(1)
		}
		difficulty, err := strconv.Atoi(args[0])
		if err != nil {
			panic(err)
		}
		challenge, err := hex.DecodeString(args[1])
		if err != nil {
			panic(err)
		}
		result := xcrypto.ComputePow(difficulty, challenge)
		fmt.Printf("result=%s\n", hex.EncodeToString(result[:]))
	},
}

var powVerifyCmd = &cobra.Command{
	Use:   "verify <difficulty> <challenge-hex> <result-hex>",
	Short: "Checks whether a result nonce solves a proof-of-work puzzle",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 3 {
			fmt.Println("Usage: vl1ctl pow verify <difficulty> <challenge-hex> <result-hex>")
			os.Exit(1)
		}
		difficulty, err := strconv.Atoi(args[0])
		if err != nil {
			panic(err)
		}
		challenge, err := hex.DecodeString(args[1])
		if err != nil {
			panic(err)
		}
		resultBytes, err := hex.DecodeString(args[2])
		if err != nil || len(resultBytes) != xcrypto.PowResultSize {
			fmt.Println("result must be", xcrypto.PowResultSize, "bytes of hex")
			os.Exit(1)
		}
		var result [xcrypto.PowResultSize]byte
		copy(result[:], resultBytes)

		if xcrypto.VerifyPow(difficulty, challenge, result) {
			fmt.Println("valid")
		} else {
			fmt.Println("invalid")
			os.Exit(1)
		}
	},
}

func init() {
	powCmd.AddCommand(powComputeCmd, powVerifyCmd)
	rootCmd.AddCommand(powCmd)
}
