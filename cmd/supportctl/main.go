// supportctl is the operator CLI for the support bot: webhook registration,
// seeding the auto-response table and checking configuration.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"tg_support_bot/internal/app"
	"tg_support_bot/internal/config"
	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/autoresponse"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/server"
	"tg_support_bot/internal/telegram"
)

const commandTimeout = 30 * time.Second

func main() {
	cliApp := &cli.App{
		Name:  "supportctl",
		Usage: "operate the telegram support bot",
		Commands: []*cli.Command{
			webhookCommand(),
			responsesCommand(),
			configCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func webhookCommand() *cli.Command {
	return &cli.Command{
		Name:  "webhook",
		Usage: "manage the telegram webhook registration",
		Subcommands: []*cli.Command{
			{
				Name:  "set",
				Usage: "register the webhook url with telegram",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "full webhook url (defaults to PUBLIC_URL + " + server.WebhookPath + ")",
					},
				},
				Action: func(cctx *cli.Context) error {
					cfg, client, err := loadClient()
					if err != nil {
						return err
					}
					url, err := resolveWebhookURL(cctx.String("url"), cfg.PublicURL)
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cctx.Context, commandTimeout)
					defer cancel()
					if err := client.SetWebhook(ctx, url, cfg.WebhookSecret); err != nil {
						return err
					}
					fmt.Fprintf(cctx.App.Writer, "webhook set: %s\n", url)
					return nil
				},
			},
			{
				Name:  "info",
				Usage: "show the current webhook registration",
				Action: func(cctx *cli.Context) error {
					_, client, err := loadClient()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cctx.Context, commandTimeout)
					defer cancel()
					status, err := client.WebhookInfo(ctx)
					if err != nil {
						return err
					}
					return printJSON(cctx.App.Writer, status)
				},
			},
			{
				Name:  "delete",
				Usage: "remove the webhook registration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "drop-pending",
						Usage: "discard updates telegram has queued",
					},
				},
				Action: func(cctx *cli.Context) error {
					_, client, err := loadClient()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cctx.Context, commandTimeout)
					defer cancel()
					if err := client.DeleteWebhook(ctx, cctx.Bool("drop-pending")); err != nil {
						return err
					}
					fmt.Fprintln(cctx.App.Writer, "webhook deleted")
					return nil
				},
			},
		},
	}
}

func responsesCommand() *cli.Command {
	return &cli.Command{
		Name:  "responses",
		Usage: "manage auto-response triggers",
		Subcommands: []*cli.Command{
			{
				Name:  "seed",
				Usage: "store the default trigger table",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "replace responses of triggers that already exist",
					},
				},
				Action: func(cctx *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					logger, err := logging.Setup(cfg)
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cctx.Context, commandTimeout)
					defer cancel()

					backend, err := app.OpenStore(ctx, cfg, logger)
					if err != nil {
						return err
					}
					defer backend.Close(context.Background())

					added, err := seedResponses(ctx, backend.Gateway, autoresponse.DefaultResponses(), cctx.Bool("overwrite"))
					if err != nil {
						return err
					}
					fmt.Fprintf(cctx.App.Writer, "seeded %d auto response(s) into %s\n", added, backend.Name)
					return nil
				},
			},
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "inspect configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "check",
				Usage: "load the environment and print it with secrets redacted",
				Action: func(cctx *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					fmt.Fprintln(cctx.App.Writer, "configuration check: ok")
					fmt.Fprintln(cctx.App.Writer, config.FormatRedacted(cfg))
					return nil
				},
			},
		},
	}
}

type responseStore interface {
	ListAutoResponses(ctx context.Context) ([]domain.AutoResponse, error)
	AddAutoResponse(ctx context.Context, trigger, response string) error
}

// seedResponses writes defaults whose trigger is not stored yet, or all of
// them when overwrite is set. It returns how many were written.
func seedResponses(ctx context.Context, store responseStore, defaults []domain.AutoResponse, overwrite bool) (int, error) {
	existing, err := store.ListAutoResponses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list auto responses: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.Trigger] = true
	}

	written := 0
	for _, r := range defaults {
		if !overwrite && known[domain.NormalizeTerm(r.Trigger)] {
			continue
		}
		if err := store.AddAutoResponse(ctx, r.Trigger, r.Response); err != nil {
			return written, fmt.Errorf("add auto response %q: %w", r.Trigger, err)
		}
		written++
	}
	return written, nil
}

func resolveWebhookURL(explicit, publicURL string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if publicURL == "" {
		return "", errors.New("pass --url or set " + config.KeyPublicURL)
	}
	return server.WebhookURL(publicURL), nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func loadClient() (config.Config, *telegram.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.Setup(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	client, err := telegram.NewClient(cfg, logger)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, client, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
