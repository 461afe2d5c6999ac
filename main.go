package main

import "github.com/josephlewis42/forksh/cmd"

func main() {
	cmd.Execute()
}
