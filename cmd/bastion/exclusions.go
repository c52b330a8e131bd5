package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bastionwaf/bastion/internal/config"
	"github.com/bastionwaf/bastion/internal/exclusion"
	"github.com/bastionwaf/bastion/internal/logging"
)

func newExclusionsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "exclusions",
		Short: "Manage exclusion rules in the configured backend",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	withStore := func(cmd *cobra.Command, fn func(*exclusion.Store) error) error {
		store, err := openStore(cmd, configPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return fn(store)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List exclusion rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *exclusion.Store) error {
				return printRules(cmd.OutOrStdout(), store.Rules())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-path <prefix>",
		Short: "Exclude requests whose path starts with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *exclusion.Store) error {
				if err := store.AddPathRule(args[0]); err != nil {
					return err
				}
				return printRules(cmd.OutOrStdout(), store.Rules())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-query <name,name,...>",
		Short: "Exclude requests whose query parameter names are exactly this set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *exclusion.Store) error {
				names := exclusion.ParseQueryParamNames(strings.Join(args, ","))
				if err := store.AddQueryParamSetRule(names); err != nil {
					return err
				}
				return printRules(cmd.OutOrStdout(), store.Rules())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <path|queryParamSet> <index>",
		Short: "Remove a rule by position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := exclusion.ParseRuleKind(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			return withStore(cmd, func(store *exclusion.Store) error {
				if err := store.RemoveRule(kind, index); err != nil {
					return err
				}
				return printRules(cmd.OutOrStdout(), store.Rules())
			})
		},
	})

	return cmd
}

func openStore(cmd *cobra.Command, configPath string) (*exclusion.Store, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Exclusions.Backend == config.BackendMemory {
		return nil, fmt.Errorf("exclusions backend %q is not persistent; use the admin API of a running gateway", config.BackendMemory)
	}

	backend, err := exclusion.OpenConfigured(cfg)
	if err != nil {
		return nil, err
	}
	store, err := exclusion.NewStore(backend, logging.NewWriterLogger(cmd.ErrOrStderr(), "warn"))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

func printRules(w io.Writer, rules exclusion.Rules) error {
	var b strings.Builder
	b.WriteString("Path rules:\n")
	if len(rules.Paths) == 0 {
		b.WriteString("  none\n")
	}
	for i, rule := range rules.Paths {
		fmt.Fprintf(&b, "  [%d] %s\n", i, rule.Prefix)
	}
	b.WriteString("Query parameter set rules:\n")
	if len(rules.QueryParamSets) == 0 {
		b.WriteString("  none\n")
	}
	for i, rule := range rules.QueryParamSets {
		fmt.Fprintf(&b, "  [%d] %s\n", i, rule)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
