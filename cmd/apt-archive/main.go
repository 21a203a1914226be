package main

import "apt-archive/internal/cli"

func main() {
	cli.Execute()
}
