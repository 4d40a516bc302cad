package main

import (
	"github.com/deye-exporter/cmd/exporter"
)

func main() {
	exporter.Execute()
}
