package vl1ctl

import (
	"fmt"
	"os"

	"github.com/ambereth/vl1/config"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:     "identity",
	Short:   "Generate or inspect VL1 identities",
	GroupID: "identity",
}

var identityNewCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Generates a new VL1 identity and writes it to path",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: vl1ctl identity new <path>")
			os.Exit(1)
		}
		id, priv, signingPriv, err := config.GenerateLocalIdentity()
		if err != nil {
			panic(err)
		}
		if err := config.SaveIdentity(args[0], id, priv, signingPriv); err != nil {
			panic(err)
		}
		fmt.Printf("address=%s\n", id.Address)
	},
}

var identityInspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Prints the address and public key material of an identity file",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: vl1ctl identity inspect <path>")
			os.Exit(1)
		}
		id, _, _, err := config.LoadIdentity(args[0])
		if err != nil {
			panic(err)
		}
		fmt.Printf("address=%s\n", id.Address)
		fmt.Printf("public_key=%x\n", id.PublicKey)
		fmt.Printf("signing_public_key=%x\n", id.SigningPublicKey)
		fmt.Printf("locally_valid=%v\n", id.LocallyValidate())
	},
}

func init() {
	identityCmd.AddCommand(identityNewCmd, identityInspectCmd)
	rootCmd.AddCommand(identityCmd)
}
