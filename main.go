package main

import "github.com/tanq16/kickstart/cmd"

func main() {
	cmd.Execute()
}
