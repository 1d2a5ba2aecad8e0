package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/bootstrap"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/config"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/validation"
)

// fieldFlags maps CLI spellings onto record fields.
var fieldFlags = map[string]domain.Field{
	"nik":     domain.FieldNationalID,
	"npwp15":  domain.FieldTaxID15,
	"npwp16":  domain.FieldTaxID16,
	"name":    domain.FieldName,
	"address": domain.FieldAddress,
}

func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:      "intakectl",
		Usage:     "Operator tools for the KTP/NPWP intake bot",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			validateCmd(out),
			extractCmd(out),
			checkConfigCmd(out),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func validateCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate and normalize a single field value",
		ArgsUsage: "VALUE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Required: true, Usage: "nik|npwp15|npwp16|name|address"},
		},
		Action: func(c *cli.Context) error {
			field, ok := fieldFlags[strings.ToLower(c.String("field"))]
			if !ok {
				return fmt.Errorf("unknown field %q", c.String("field"))
			}
			if c.NArg() == 0 {
				return fmt.Errorf("value is required")
			}
			raw := strings.Join(c.Args().Slice(), " ")

			value, err := validation.ValidateField(field, raw)
			result := map[string]any{"field": string(field), "input": raw, "valid": err == nil}
			if err != nil {
				result["error"] = err.Error()
			} else {
				result["value"] = value
			}
			if encodeErr := writeJSON(out, result); encodeErr != nil {
				return encodeErr
			}
			if err != nil {
				return cli.Exit("invalid value", 2)
			}
			return nil
		},
	}
}

func extractCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Run the extraction pipeline on an image and print the record",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Required: true, Usage: "Path to a KTP or NPWP image"},
		},
		Action: func(c *cli.Context) error {
			data, err := os.ReadFile(c.String("file"))
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			cfg := config.Load()
			extractor, closeFn, err := bootstrap.NewExtractor(c.Context, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := extractor.Extract(c.Context, data, http.DetectContentType(data))
			if err != nil {
				return err
			}
			return writeJSON(out, rec.ToMap())
		},
	}
}

func checkConfigCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "check-config",
		Usage: "Load the environment and report configuration problems",
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			branches, err := cfg.Branches()
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]any{
				"status":        "ok",
				"provider":      cfg.ActiveAIService,
				"store_backend": cfg.StoreBackend,
				"telegram_mode": cfg.TelegramMode,
				"branches":      branches.Codes(),
			})
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
