package main

import "bitwise74/model-vault/cmd"

func main() {
	cmd.Execute()
}
