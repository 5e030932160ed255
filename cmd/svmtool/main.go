package main

import (
	"os"

	"text2phenotype.com/svm/logger"
)

func main() {
	logger.SetupLogging()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
