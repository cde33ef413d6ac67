package main

import "github.com/KaramelBytes/specloom-cli/cmd"

func main() {
	cmd.Execute()
}
