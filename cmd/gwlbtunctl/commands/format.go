package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not
// supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatFlows renders a slice of tracked flows in the requested format.
func formatFlows(flows []flowtrack.FlowSnapshot, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatFlowsJSON(flows)
	case formatYAML:
		return formatFlowsYAML(flows)
	case formatTable:
		return formatFlowsTable(flows), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatFlow renders a single tracked flow in the requested format.
func formatFlow(flow flowtrack.FlowSnapshot, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatFlowJSON(flow)
	case formatYAML:
		return formatFlowYAML(flow)
	case formatTable:
		return formatFlowDetail(flow), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatFlowsTable(flows []flowtrack.FlowSnapshot) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COOKIE\tPROTO\tSRC\tDST\tSTATE\tLAST-SEEN")

	for _, f := range flows {
		fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s:%d\t%s\t%s\n",
			f.Cookie,
			protoName(f.Protocol),
			f.SrcAddr, f.SrcPort,
			f.DstAddr, f.DstPort,
			f.State,
			unixSeconds(f.LastPacketTimestamp).Format(time.RFC3339),
		)
	}

	w.Flush()

	return buf.String()
}

func formatFlowDetail(f flowtrack.FlowSnapshot) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Cookie:\t%s\n", f.Cookie)
	fmt.Fprintf(w, "Protocol:\t%s\n", protoName(f.Protocol))
	fmt.Fprintf(w, "Source:\t%s:%d\n", f.SrcAddr, f.SrcPort)
	fmt.Fprintf(w, "Destination:\t%s:%d\n", f.DstAddr, f.DstPort)
	fmt.Fprintf(w, "State:\t%s\n", f.State)
	fmt.Fprintf(w, "Started:\t%s\n", unixSeconds(f.StartTimestamp).Format(time.RFC3339))
	fmt.Fprintf(w, "Last Packet:\t%s\n", unixSeconds(f.LastPacketTimestamp).Format(time.RFC3339))
	fmt.Fprintf(w, "Packets Sent:\t%d\n", f.PktsSent)
	fmt.Fprintf(w, "Packets Received:\t%d\n", f.PktsReceived)
	fmt.Fprintf(w, "Bytes Sent:\t%d\n", f.BytesSent)
	fmt.Fprintf(w, "Bytes Received:\t%d\n", f.BytesReceived)

	w.Flush()

	return buf.String()
}

// --- JSON formatters ---

func formatFlowsJSON(flows []flowtrack.FlowSnapshot) (string, error) {
	data, err := json.MarshalIndent(flows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal flows to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

func formatFlowJSON(flow flowtrack.FlowSnapshot) (string, error) {
	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal flow to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// --- YAML formatters ---

func formatFlowsYAML(flows []flowtrack.FlowSnapshot) (string, error) {
	data, err := yaml.Marshal(flows)
	if err != nil {
		return "", fmt.Errorf("marshal flows to YAML: %w", err)
	}

	return string(data), nil
}

func formatFlowYAML(flow flowtrack.FlowSnapshot) (string, error) {
	data, err := yaml.Marshal(flow)
	if err != nil {
		return "", fmt.Errorf("marshal flow to YAML: %w", err)
	}

	return string(data), nil
}

// --- helpers ---

func unixSeconds(s int64) time.Time {
	return time.Unix(s, 0).UTC()
}

func protoName(p uint8) string {
	switch p {
	case 1:
		return "icmp"
	case 6:
		return "tcp"
	case 17:
		return "udp"
	default:
		return fmt.Sprintf("proto(%d)", p)
	}
}
