package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newMarkCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "mark <topic>...",
		Short: "Mark topics as changed on a running relay",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			base := strings.TrimRight(serverURL, "/")

			for _, topic := range args {
				endpoint := base + "/api/v1/topics/" + url.PathEscape(topic) + "/changed"
				req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, nil)
				if err != nil {
					return err
				}
				resp, err := client.Do(req)
				if err != nil {
					return fmt.Errorf("mark %s: %w", topic, err)
				}
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				resp.Body.Close()

				if resp.StatusCode != http.StatusAccepted {
					return fmt.Errorf("mark %s: %s: %s", topic, resp.Status, strings.TrimSpace(string(body)))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %s\n", topic)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "relay base URL")
	return cmd
}
