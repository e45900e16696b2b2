package main

import "github.com/KaramelBytes/tardis-cli/cmd"

func main() {
	cmd.Execute()
}
