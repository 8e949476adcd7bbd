package main

import "github.com/ambereth/vl1/cmd/vl1ctl"

func main() {
	vl1ctl.Execute()
}
