package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/sessionshare/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration and contexts",
		Long:  `Manage forum contexts, similar to kubectl contexts.`,
	}

	cmd.AddCommand(newCurrentContextCommand())
	cmd.AddCommand(newUseContextCommand())
	cmd.AddCommand(newListContextsCommand())
	cmd.AddCommand(newAddContextCommand())
	cmd.AddCommand(newDeleteContextCommand())
	cmd.AddCommand(newConfigShowCommand())

	return cmd
}

// current-context command
func newCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Display the current context",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), getCliContext(cmd).Config.CurrentContext)
			return nil
		},
	}
}

// use-context command
func newUseContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context CONTEXT_NAME",
		Short: "Switch to a different context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]
			cfg := getCliContext(cmd).Config

			if err := cfg.SetCurrentContext(contextName); err != nil {
				return err
			}
			if err := SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", contextName)
			return nil
		},
	}
}

// list-contexts command
func newListContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list-contexts",
		Aliases: []string{"get-contexts"},
		Short:   "List all available contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCliContext(cmd).Config
			out := cmd.OutOrStdout()

			if len(cfg.Contexts) == 0 {
				fmt.Fprintln(out, "No contexts configured")
				return nil
			}

			names := make([]string, 0, len(cfg.Contexts))
			for name := range cfg.Contexts {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CURRENT\tNAME\tFORUM\tNAMESPACE")

			for _, name := range names {
				ctx := cfg.Contexts[name]
				current := " "
				if name == cfg.CurrentContext {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					current,
					name,
					ctx.ForumURL,
					ctx.Settings().Name,
				)
			}
			return w.Flush()
		},
	}
}

// add-context command
func newAddContextCommand() *cobra.Command {
	var (
		forumURL string
		options  []string
	)

	cmd := &cobra.Command{
		Use:   "add-context CONTEXT_NAME",
		Short: "Add or update a context",
		Long: `Add or update a context. Options use the forum's option names, for example
  --option secret=changeme --option payload:parent=user`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]
			cfg := getCliContext(cmd).Config

			opts, err := parseOptions(options)
			if err != nil {
				return err
			}

			if err := cfg.AddContext(contextName, &Context{ForumURL: forumURL, Options: opts}); err != nil {
				return err
			}

			// If this is the first context, make it current
			if len(cfg.Contexts) == 1 {
				cfg.CurrentContext = contextName
			}

			if err := SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Context %q added/updated\n", contextName)
			return nil
		},
	}

	cmd.Flags().StringVar(&forumURL, "forum-url", "http://localhost:4567", "Forum base URL including any relative path")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Session sharing option as key=value (repeatable)")

	return cmd
}

// delete-context command
func newDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context CONTEXT_NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextName := args[0]
			cfg := getCliContext(cmd).Config

			if err := cfg.DeleteContext(contextName); err != nil {
				return err
			}
			if err := SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted\n", contextName)
			return nil
		},
	}
}

// show command
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current context configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			ctx, err := cc.Current()
			if err != nil {
				return fmt.Errorf("failed to get current context: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current context: %s\n", cc.Config.CurrentContext)
			fmt.Fprintf(out, "  Forum URL: %s\n", ctx.ForumURL)

			opts := ctx.Settings().Options()
			for _, key := range config.SortedKeys(opts) {
				value := opts[key]
				if key == config.OptSecret {
					value = "********"
				}
				fmt.Fprintf(out, "  %s: %s\n", key, value)
			}

			configPath, _ := GetConfigPath()
			fmt.Fprintf(out, "  Config File: %s\n", configPath)
			return nil
		},
	}
}
