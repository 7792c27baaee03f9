package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/sync-tester/internal/config"
	"github.com/sweeney/sync-tester/internal/gpio"
	"github.com/sweeney/sync-tester/internal/logic"
	"github.com/sweeney/sync-tester/internal/status"
	"github.com/sweeney/sync-tester/internal/termui"
)

// discardEdges satisfies gpio.EdgeSink when only raw levels are wanted.
type discardEdges struct{}

func (discardEdges) OnSyncEdge(logic.Level, uint32)  {}
func (discardEdges) OnFieldEdge(logic.Level, uint32) {}

func printStateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the current sync and field line levels and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			inputs, err := gpio.NewRealInputs(cfg.Chip, cfg.PinSync, cfg.PinField, discardEdges{})
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer inputs.Close()
			return printState(cmd.OutOrStdout(), inputs)
		},
	}
}

func printState(w io.Writer, inputs gpio.Inputs) error {
	syncLevel, fieldLevel, err := inputs.Levels()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	parity := logic.Even
	if fieldLevel == logic.High {
		parity = logic.Odd
	}
	fmt.Fprintf(w, "SYNC: %s, FIELD: %s (%s)\n", syncLevel, fieldLevel, parity)
	return nil
}

func statusCmd() *cobra.Command {
	var (
		addr    string
		raw     bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running tester",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			s, body, err := fetchStatus(ctx, http.DefaultClient, addr)
			if err != nil {
				return err
			}
			if raw {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), termui.Render(s.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:80", "tester HTTP address")
	cmd.Flags().BoolVar(&raw, "json", false, "print the raw JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func statusURL(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + "/api/status"
}

func fetchStatus(ctx context.Context, client *http.Client, addr string) (status.StatusJSON, []byte, error) {
	var out status.StatusJSON
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL(addr), nil)
	if err != nil {
		return out, nil, fmt.Errorf("status request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return out, nil, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, nil, fmt.Errorf("read status: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, nil, fmt.Errorf("fetch status: %s", resp.Status)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, nil, fmt.Errorf("decode status: %w", err)
	}
	if out.Status.Timestamp == "" {
		return out, nil, errors.New("decode status: missing status object")
	}
	return out, body, nil
}
