package main

import "github.com/rl1809/retail-pos/cmd/posctl/commands"

func main() {
	commands.Execute()
}
