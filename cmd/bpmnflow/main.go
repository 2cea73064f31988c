package main

import (
	"os"

	"github.com/kode4food/bpmnflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
