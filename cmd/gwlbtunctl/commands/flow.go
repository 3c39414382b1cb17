package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
)

// errFlowNotFound is returned when a requested cookie has no matching entry
// in the daemon's current flow table.
var errFlowNotFound = errors.New("flow not found")

func flowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect tracked Geneve flows",
	}

	cmd.AddCommand(flowListCmd())
	cmd.AddCommand(flowShowCmd())

	return cmd
}

// --- flow list ---

func flowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracked flows",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			flows, err := fetchFlows()
			if err != nil {
				return fmt.Errorf("fetch flows: %w", err)
			}

			out, err := formatFlows(flows, outputFormat)
			if err != nil {
				return fmt.Errorf("format flows: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// --- flow show ---

func flowShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <cookie>",
		Short: "Show details of a single tracked flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flows, err := fetchFlows()
			if err != nil {
				return fmt.Errorf("fetch flows: %w", err)
			}

			for _, f := range flows {
				if f.Cookie == args[0] {
					out, err := formatFlow(f, outputFormat)
					if err != nil {
						return fmt.Errorf("format flow: %w", err)
					}

					fmt.Print(out)

					return nil
				}
			}

			return fmt.Errorf("%w: %s", errFlowNotFound, args[0])
		},
	}
}

// fetchFlows retrieves the current flow table from the daemon's /flows
// endpoint.
func fetchFlows() ([]flowtrack.FlowSnapshot, error) {
	url := "http://" + serverAddr + "/flows"

	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	var flows []flowtrack.FlowSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&flows); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}

	return flows, nil
}
