package main

import (
	"fmt"
	"os"
)

func main() {
	root, cleanup := newRootCmd(os.Stdout, os.Stderr)
	err := root.Execute()
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
