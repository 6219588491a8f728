// Command screengen generates the program of one app module.
//
//	screengen [flags] <app>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"screenforge/internal/app"
	"screenforge/internal/appfs"
	"screenforge/internal/artifact"
	"screenforge/internal/codegen"
	"screenforge/internal/codegen/termprogress"
	"screenforge/internal/config"
	"screenforge/internal/llm"
	"screenforge/internal/screenserver"
)

func main() {
	var dryRun bool
	cfg, args, err := config.Load("screengen", os.Args[1:], func(fs *pflag.FlagSet) {
		fs.BoolVar(&dryRun, "print-prompt", false, "print the composite prompt and exit")
		fs.BoolVar(&dryRun, "dry-run", false, "alias of --print-prompt")
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, closeLog, err := app.Logger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: screengen [flags] <app>")
		os.Exit(2)
	}
	name := args[0]

	assetsFS, err := app.Assets(cfg.AssetsDir, logger)
	if err != nil {
		app.Fatal(logger, "open assets", err)
	}
	apps, err := appfs.New(cfg.AppsDir)
	if err != nil {
		app.Fatal(logger, "open apps directory", err)
	}
	tools := screenserver.New(nil, nil, nil, logger).Specs()
	src, err := codegen.LoadSources(assetsFS, apps, name, tools)
	if err != nil {
		var missing *codegen.MissingFileError
		if errors.As(err, &missing) {
			fmt.Fprintf(os.Stderr, "screengen: %s not found at %s\n", missing.What, missing.Path)
			os.Exit(1)
		}
		app.Fatal(logger, "load sources", err)
	}

	models := codegen.Models{Text: cfg.Models.Text, Image: cfg.Models.Image}
	if dryRun {
		text, err := codegen.Assemble(src, models)
		if err != nil {
			app.Fatal(logger, "assemble prompt", err)
		}
		fmt.Print(text)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := artifact.Open(cfg.Artifact, logger)
	if err != nil {
		app.Fatal(logger, "open artifact store", err)
	}
	gen, err := app.Generator(ctx, cfg, cfg.Models.Codegen, nil, logger)
	if err != nil {
		app.Fatal(logger, "create generator", err)
	}
	defer func() { _ = llm.Close(gen) }()

	progress := termprogress.ForFile(os.Stderr, cfg.Codegen.WindowLines, logger)
	pipeline := &codegen.Pipeline{
		Generator: gen,
		Store:     store,
		Progress:  progress,
		Logger:    logger,
		Config: codegen.Config{
			Model:         cfg.Models.Codegen,
			Models:        models,
			StreamTimeout: cfg.Codegen.StreamTimeout,
			IdleTimeout:   cfg.Codegen.IdleTimeout,
		},
	}
	res, err := pipeline.Run(ctx, src)
	if d, ok := progress.(interface{ Done() }); ok {
		d.Done()
	}
	if err != nil {
		app.Fatal(logger, "generate program", err)
	}

	where := res.Path
	if res.URL != "" {
		where = res.URL
	}
	fmt.Printf("wrote %s (%d lines)\n", where, res.Lines)
	if res.CompileError != nil {
		fmt.Fprintf(os.Stderr, "warning: generated program does not compile: %v\n", res.CompileError)
	}
}
