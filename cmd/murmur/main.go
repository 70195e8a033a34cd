package main

import (
	cmd "github.com/mosaicnetworks/murmur/src/cmd/murmur/command"
)

func main() {
	cmd.Execute()
}
