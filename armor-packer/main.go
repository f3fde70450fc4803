package main

import "armor-tools/go/armor-packer/cmd"

func main() {
	cmd.Execute()
}
