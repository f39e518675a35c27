// Command quantumctl drives the particle, superposition and entanglement
// registries from the shell. Output is JSON on stdout.
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

var exitFunc = os.Exit

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logrus.WithError(err).Error("quantumctl failed")
		exitFunc(1)
	}
}
