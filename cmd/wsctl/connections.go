package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/wsctl/internal/config"
	"github.com/rickgao/wsctl/internal/connection"
)

// newConnectionsCmd queries the inspect server of a running wsctl.
func newConnectionsCmd() *cobra.Command {
	var (
		addr   string
		status string
	)

	cmd := &cobra.Command{
		Use:   "connections [id]",
		Short: "Show connections of a running wsctl through its inspect server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &inspectClient{base: "http://" + addr, http: &http.Client{Timeout: 5 * time.Second}}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid connection id: %s", args[0])
				}
				snap, err := client.describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprint(out, snap.String())
				return nil
			}

			if status != "" {
				if _, err := connection.ParseStatus(status); err != nil {
					return err
				}
			}
			snaps, err := client.list(cmd.Context(), status)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(out, "> No connections")
				return nil
			}
			for _, snap := range snaps {
				fmt.Fprintf(out, "> [%d] %s %s\n", snap.ID, snap.Status, snap.URI)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultInspectAddr, "inspect server address")
	cmd.Flags().StringVar(&status, "status", "", "only list connections in this status (Connecting, Open, Failed, Closed)")
	return cmd
}

type inspectClient struct {
	base string
	http *http.Client
}

func (c *inspectClient) list(ctx context.Context, status string) ([]connection.Snapshot, error) {
	path := "/connections"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var snaps []connection.Snapshot
	if err := c.get(ctx, path, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (c *inspectClient) describe(ctx context.Context, id uint64) (connection.Snapshot, error) {
	var snap connection.Snapshot
	err := c.get(ctx, "/connections/"+strconv.FormatUint(id, 10), &snap)
	return snap, err
}

func (c *inspectClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("query inspect server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			return fmt.Errorf("inspect server: %s", body.Error)
		}
		return fmt.Errorf("inspect server: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
