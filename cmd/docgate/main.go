// Command docgate reads, writes and queries documents in the configured
// document store.
package main

import (
	"github.com/nimburion/docgate/pkg/cli"
	"github.com/nimburion/docgate/pkg/config"
)

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:       "docgate",
		ConfigPath: "",
		EnvPrefix:  config.DefaultEnvPrefix,
	}))
}
