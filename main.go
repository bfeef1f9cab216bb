package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/nijaru/yt-digest/handlers/api"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/services/job"
	"github.com/nijaru/yt-digest/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	envFlag := &cli.StringFlag{
		Name:  "env",
		Value: ".env",
		Usage: "path to an optional .env file",
	}
	driverFlag := &cli.StringFlag{
		Name:  "db",
		Usage: "override DB_DRIVER (sqlite, postgres or memory)",
	}

	return &cli.Command{
		Name:  "yt-digest",
		Usage: "Transcribe and summarize YouTube videos",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API and job workers",
				Flags:  []cli.Flag{envFlag, driverFlag},
				Action: serve,
			},
			{
				Name:  "run",
				Usage: "Run one job in the foreground and print the result",
				Flags: []cli.Flag{
					envFlag,
					driverFlag,
					&cli.StringFlag{Name: "url", Usage: "YouTube video URL"},
					&cli.StringFlag{Name: "query", Usage: "topic to search for"},
					&cli.StringFlag{Name: "title", Usage: "title for a single video job"},
					&cli.StringFlag{Name: "language", Value: models.DefaultLanguage, Usage: "caption and summary language"},
					&cli.StringFlag{Name: "mode", Value: string(models.SearchFocused), Usage: "search mode: focused or divergent"},
					&cli.StringFlag{Name: "template", Usage: "summary template"},
					&cli.StringFlag{Name: "instructions", Usage: "extra summary instructions"},
					&cli.BoolFlag{Name: "no-audio", Usage: "skip the audio fallback"},
				},
				Action: runJob,
			},
			{
				Name:      "status",
				Usage:     "Print a stored job",
				ArgsUsage: "<job-id>",
				Flags:     []cli.Flag{envFlag, driverFlag},
				Action:    status,
			},
		},
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	app, err := NewApp(ctx, cmd.String("env"), cmd.String("db"))
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Jobs.Start(ctx); err != nil {
		return err
	}

	server := api.NewServer(app.Config,
		api.WithLogger(app.Logger),
		api.WithJobService(app.Jobs),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	app.Logger.Info("Server exited properly")
	return nil
}

func runJob(ctx context.Context, cmd *cli.Command) error {
	sub := validation.Submission{
		URL:   cmd.String("url"),
		Query: cmd.String("query"),
		Title: cmd.String("title"),
		Options: models.Options{
			Language:          cmd.String("language"),
			ProcessAudio:      !cmd.Bool("no-audio"),
			SearchMode:        models.SearchMode(cmd.String("mode")),
			Template:          cmd.String("template"),
			ExtraInstructions: cmd.String("instructions"),
		},
	}
	if err := validation.NewValidator().ValidateSubmission(&sub); err != nil {
		return err
	}

	app, err := NewApp(ctx, cmd.String("env"), cmd.String("db"))
	if err != nil {
		return err
	}
	defer app.Close()

	view, err := app.Jobs.Run(ctx, job.Request{
		URL:     sub.URL,
		Query:   sub.Query,
		Title:   sub.Title,
		Options: sub.Options,
		Owner:   models.Owner{UserID: os.Getenv("USER")},
	})
	if err != nil {
		return err
	}

	if err := printJSON(cmd.Root().Writer, view); err != nil {
		return err
	}
	if view.Status == models.StatusError {
		return cli.Exit("job failed: "+view.ErrorMessage, 1)
	}
	return nil
}

func status(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return cli.Exit("job id is required", 2)
	}

	app, err := NewApp(ctx, cmd.String("env"), cmd.String("db"))
	if err != nil {
		return err
	}
	defer app.Close()

	view, err := app.Jobs.Poll(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, view)
}

func printJSON(w io.Writer, v interface{}) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
