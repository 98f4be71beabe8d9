package main

import "github.com/Siddhant-K-code/mqassist/cmd"

func main() {
	cmd.Execute()
}
