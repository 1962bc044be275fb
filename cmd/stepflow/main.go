// Command stepflow checks, renders and exports workflow files.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	err := newApp(os.Stdout).Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
