package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/opsflow"
	"github.com/petrijr/opsflow/internal/server"
)

func newImportCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a workflow from a JSON or YAML file",
		Long: "Import a workflow graph. With --url the file is posted to a running server; " +
			"otherwise it is validated and written to the configured store directly.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			contentType := contentTypeFor(args[0])

			var id string
			if url != "" {
				id, err = postWorkflow(cmd.Context(), url, contentType, body)
			} else {
				id, err = storeWorkflow(cmd.Context(), cfg, logger, contentType, body)
			}
			if err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "workflow_imported",
				slog.String("file", args[0]),
				slog.String("workflow_id", id),
			)
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Base URL of a running opsflow server")
	return cmd
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/json"
	}
}

func postWorkflow(ctx context.Context, baseURL, contentType string, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/workflows", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("import failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.ID, nil
}

func storeWorkflow(ctx context.Context, cfg *opsflow.Config, logger *slog.Logger, contentType string, body []byte) (string, error) {
	wf, err := server.DecodeWorkflow(contentType, body)
	if err != nil {
		return "", err
	}

	orch, err := opsflow.New(ctx, cfg, opsflow.WithLogger(logger))
	if err != nil {
		return "", err
	}
	defer orch.Shutdown(context.WithoutCancel(ctx))

	if err := orch.SaveWorkflow(ctx, wf); err != nil {
		return "", err
	}
	return wf.ID, nil
}
