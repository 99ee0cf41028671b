package cmd

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcpsentry/internal/catalog"
	"github.com/giantswarm/mcpsentry/internal/formatting"
	"github.com/giantswarm/mcpsentry/internal/mcptypes"
	"github.com/giantswarm/mcpsentry/internal/protocol"
	"github.com/giantswarm/mcpsentry/internal/transport"
)

var (
	connectURL            string
	connectTransport      string
	connectHeaders        []string
	connectSessionInURL   bool
	connectConnectTimeout time.Duration
	connectOutput         string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to an MCP server and print its tool/resource/prompt catalog",
	Long: `connect opens a transport to the given server, performs the
initialize handshake, enumerates its tools, resources, resource templates,
and prompts, and prints a summary of what it found.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVar(&connectURL, "url", "", "MCP server URL (required)")
	connectCmd.Flags().StringVar(&connectTransport, "transport", "streamable", "Transport to use (streamable, sse)")
	connectCmd.Flags().StringArrayVar(&connectHeaders, "header", nil, "Custom header as name=value (repeatable)")
	connectCmd.Flags().BoolVar(&connectSessionInURL, "session-in-url", true, "Forward the streamable session id via URL query instead of a header")
	connectCmd.Flags().DurationVar(&connectConnectTimeout, "connect-timeout", 30*time.Second, "Timeout for the initial connection and handshake")
	connectCmd.Flags().StringVar(&connectOutput, "output", "console", "Output format (console, json, yaml, table)")
	connectCmd.MarkFlagRequired("url")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), connectConnectTimeout)
	defer cancel()

	client, err := buildClient(connectURL, connectTransport, connectHeaders, connectSessionInURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Start(ctx); err != nil {
		return err
	}
	if _, err := client.Initialize(ctx); err != nil {
		return err
	}

	cat := catalog.New()
	if err := cat.Refresh(ctx, client); err != nil {
		return err
	}

	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: formatting.OutputFormat(connectOutput)})
	fmt.Print(formatter.FormatCatalog(cat))
	return nil
}

// buildClient parses CLI-level connection flags into a running
// protocol.Client, wiring the requested transport and any custom auth
// headers.
func buildClient(rawURL, transportKind string, headers []string, sessionInURL bool) (*protocol.Client, error) {
	headerPairs, err := parseHeaders(headers)
	if err != nil {
		return nil, err
	}

	host, path, err := splitHostPath(rawURL)
	if err != nil {
		return nil, err
	}

	cfg := mcptypes.ServerConfig{
		Name:      rawURL,
		Host:      host,
		Path:      path,
		Transport: mcptypes.TransportKind(transportKind),
	}
	if len(headerPairs) > 0 {
		cfg.Auth = mcptypes.AuthConfig{
			Kind:     mcptypes.AuthCombined,
			Combined: &mcptypes.CombinedAuth{CustomHeaders: headerPairs},
		}
	}

	var t transport.Transport
	switch cfg.Transport {
	case mcptypes.TransportSSE:
		t = transport.NewSSE(cfg)
	default:
		opts := []transport.StreamableOption{}
		if !sessionInURL {
			opts = append(opts, transport.WithSessionIDHeader())
		}
		t = transport.NewStreamable(cfg, "mcpsentry", rootCmd.Version, opts...)
	}

	return protocol.New(t, "mcpsentry", rootCmd.Version), nil
}

// splitHostPath divides a full URL into a scheme+host prefix and a
// path+query suffix, the shape mcptypes.ServerConfig expects.
func splitHostPath(rawURL string) (host, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	path = u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), path, nil
}

func parseHeaders(raw []string) ([]mcptypes.NameValue, error) {
	out := make([]mcptypes.NameValue, 0, len(raw))
	for _, h := range raw {
		name, value, ok := splitHeader(h)
		if !ok {
			return nil, fmt.Errorf("invalid --header %q, expected name=value", h)
		}
		out = append(out, mcptypes.NameValue{Name: name, Value: value})
	}
	return out, nil
}

func splitHeader(s string) (name, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
