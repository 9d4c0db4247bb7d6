package main

import "github.com/derickschaefer/pickup/cmd"

func main() {
	cmd.Execute()
}
