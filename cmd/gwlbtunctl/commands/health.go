package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon liveness via /healthz",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			url := "http://" + serverAddr + "/healthz"

			resp, err := httpClient.Get(url)
			if err != nil {
				return fmt.Errorf("GET %s: %w", url, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
			}

			fmt.Println("ok")

			return nil
		},
	}
}
