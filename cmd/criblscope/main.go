package main

import "github.com/quietops/criblscope/cmd/criblscope/commands"

func main() {
	commands.Execute()
}
