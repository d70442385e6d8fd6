package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/open-bas/open-bas/internal/config"
	"github.com/open-bas/open-bas/internal/connectors/registry"
	"github.com/spf13/cobra"
)

var connectorsJSON bool

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List the connector types this build can run.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOptionalDB()
		if err != nil {
			return err
		}
		reg, err := buildConnectorRegistry(cfg)
		if err != nil {
			return err
		}
		return writeConnectors(cmd.OutOrStdout(), reg, connectorsJSON)
	},
}

func init() {
	connectorsCmd.Flags().BoolVar(&connectorsJSON, "json", false, "print JSON instead of a table")
}

type connectorSummary struct {
	Kind        string                 `json:"kind"`
	DisplayName string                 `json:"display_name"`
	Role        string                 `json:"role"`
	Builtin     bool                   `json:"builtin"`
	Config      []registry.ConfigField `json:"config,omitempty"`
}

func summarizeConnectors(reg *registry.ConnectorRegistry) []connectorSummary {
	defs := reg.All()
	out := make([]connectorSummary, 0, len(defs))
	for _, def := range defs {
		s := connectorSummary{
			Kind:        def.Kind(),
			DisplayName: def.DisplayName(),
			Role:        string(def.Role()),
			Config:      registry.ConfigSchema(def.ConfigPrototype()),
		}
		if b, ok := def.(registry.Builtin); ok {
			s.Builtin = b.Builtin()
		}
		out = append(out, s)
	}
	return out
}

func writeConnectors(w io.Writer, reg *registry.ConnectorRegistry, asJSON bool) error {
	summaries := summarizeConnectors(reg)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tROLE\tBUILTIN\tREQUIRED")
	for _, s := range summaries {
		var required []string
		for _, f := range s.Config {
			if f.Required {
				required = append(required, f.Key)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", s.Kind, s.DisplayName, s.Role, s.Builtin, strings.Join(required, ","))
	}
	return tw.Flush()
}
