package main

import (
	"case-price-watcher/internal/cli"
)

func main() {
	cli.Execute()
}
