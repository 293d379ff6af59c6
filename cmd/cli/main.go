package main

import "battleships/cmd/cli/command"

func main() {
	command.Execute()
}
