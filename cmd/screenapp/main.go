// Command screenapp runs the generated program of one app module behind the
// gateway, one program instance per UI session.
//
//	screenapp [flags] <app>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"screenforge/apps/adventure"
	"screenforge/internal/app"
	"screenforge/internal/appfs"
	"screenforge/internal/artifact"
	"screenforge/internal/codegen"
	"screenforge/internal/config"
	"screenforge/internal/gateway"
	"screenforge/internal/llm"
	"screenforge/internal/runtime"
	"screenforge/internal/script"
)

func main() {
	var (
		programPath string
		native      bool
	)
	cfg, args, err := config.Load("screenapp", os.Args[1:], func(fs *pflag.FlagSet) {
		fs.StringVar(&programPath, "program", "", "run this program file instead of the generated one")
		fs.BoolVar(&native, "native", false, "run the built-in Go program of the adventure app")
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
		fmt.Fprintln(os.Stderr, "usage: screenapp [flags] <app>")
		os.Exit(2)
	}
	name := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apps, err := appfs.New(cfg.AppsDir)
	if err != nil {
		app.Fatal(logger, "open apps directory", err)
	}
	mod, err := app.LoadModule(apps, name)
	if err != nil {
		app.Fatal(logger, "load app", err)
	}
	store, err := artifact.Open(cfg.Artifact, logger)
	if err != nil {
		app.Fatal(logger, "open artifact store", err)
	}

	var prog runtime.Program
	switch {
	case native && name == adventure.Name:
		prog = adventure.Program(adventure.Models{Text: cfg.Models.Text, Image: cfg.Models.Image})
	case native:
		app.Fatal(logger, "select program", fmt.Errorf("no built-in program for %q", name))
	default:
		var src []byte
		if programPath != "" {
			src, err = os.ReadFile(programPath)
		} else {
			src, err = store.Get(ctx, name, codegen.OutputFile)
		}
		if err != nil {
			app.Fatal(logger, "read program (run screengen first or pass --program)", err)
		}
		prog, err = script.Load(name+"/"+codegen.OutputFile, src)
		if err != nil {
			app.Fatal(logger, "compile program", err)
		}
	}

	gen, err := app.Generator(ctx, cfg, cfg.Models.Text, artifact.Blobs{Store: store, Namespace: name}, logger)
	if err != nil {
		app.Fatal(logger, "create generator", err)
	}
	defer func() { _ = llm.Close(gen) }()

	manager, err := gateway.NewManager(ctx, &gateway.App{
		Name:     name,
		Screens:  mod.Screens,
		Prompts:  mod.Prompts,
		Program:  prog,
		Generate: gen,
	}, cfg.Sessions.MaxSessions, logger)
	if err != nil {
		app.Fatal(logger, "create session manager", err)
	}

	opts := gateway.Options{Logger: logger}
	if fsStore, ok := store.(*artifact.FileStore); ok {
		opts.ArtifactsDir = fsStore.Root()
	}
	srv := gateway.New(cfg.Port, gateway.NewMux(manager, opts), logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	manager.CloseAll()
	if cached, ok := store.(*artifact.CachedStore); ok {
		m := cached.Metrics()
		logger.Info("artifact cache", "blob_hits", m.BlobHits, "blob_misses", m.BlobMisses,
			"url_hits", m.URLHits, "url_misses", m.URLMisses, "origin_reads", m.OriginReads)
	}
	logger.Info("server exiting")
}
