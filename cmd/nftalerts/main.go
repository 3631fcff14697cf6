package main

import "nft-alerts/internal/cli"

func main() {
	cli.Execute()
}
