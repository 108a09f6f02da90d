package main

import (
	"os"

	"github.com/magdyamr542/gindev/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
