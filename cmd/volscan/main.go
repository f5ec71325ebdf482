package main

import (
	"bybit-volume-scanner/internal/cli"
)

func main() {
	cli.Execute()
}
