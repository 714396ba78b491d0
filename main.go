package main

import "github.com/Cooksey99/nucleus/cmd"

func main() {
	cmd.Execute()
}
