package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/stepbuilder/cmd/stepbuilder/commands"
	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("stepbuilder"),
		kong.Description("Content-addressed build step runner with CI stage matrices"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := commands.NewGlobal()
	if err := ctx.Run(global, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
