package main

import "vidsearch/internal/cli"

func main() {
	cli.Execute()
}
