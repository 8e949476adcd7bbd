package vl1ctl

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ambereth/vl1/wire"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:     "decode <hexpacket>",
	Short:   "Prints the header fields of a raw VL1 packet",
	GroupID: "inspect",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: vl1ctl decode <hexpacket>")
			os.Exit(1)
		}
		raw, err := hex.DecodeString(args[0])
		if err != nil {
			panic(err)
		}
		pkt := wire.View(raw)

		fmt.Printf("length=%d\n", pkt.Len())
		if dst, err := pkt.Destination(); err == nil {
			fmt.Printf("destination=%s\n", dst)
		}
		if src, err := pkt.Source(); err == nil {
			fmt.Printf("source=%s\n", src)
		}
		if pid, err := pkt.PacketID(); err == nil {
			fmt.Printf("packet_id=%016x\n", pid)
		}
		if cipher, err := pkt.Cipher(); err == nil {
			fmt.Printf("cipher=%d\n", cipher)
		}
		if verb, err := pkt.Verb(); err == nil {
			fmt.Printf("verb=%s\n", verb)
		}
		fmt.Printf("hops=%d fragmented=%v\n", pkt.Hops(), pkt.Fragmented())
		fmt.Printf("payload_len=%d\n", pkt.PayloadLen())
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
