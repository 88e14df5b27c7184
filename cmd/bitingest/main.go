package main

import (
	"os"

	"github.com/G-Research/bitingest/cmd/bitingest/cmd"
	"github.com/G-Research/bitingest/internal/common"
	"github.com/G-Research/bitingest/internal/common/ingesterrors"
)

func main() {
	common.ConfigureLogging()
	root := cmd.RootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(ingesterrors.ExitCodeFromError(err))
	}
}
