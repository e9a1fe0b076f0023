package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanchat/vanchat/pkg/config"
	"github.com/vanchat/vanchat/pkg/store"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "vanchat",
		Short: "Terminal client for virtual agent chat servers with human handoff",
		Long: strings.TrimSpace(`vanchat is a terminal chat client.

It starts or resumes conversations against a chat server, renders the
virtual agent's responses, polls for human operator messages during
handoff, and keeps named conversation profiles so a chat can be picked
up later from the same machine.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newPanelCommand())
	root.AddCommand(newDownloadCommand())
	root.AddCommand(newDeleteCommand())
	root.AddCommand(newProfilesCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.vanchat config",
		Long:    "Create a default configuration file for a new vanchat installation.",
		Example: "  vanchat onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := getConfigPath()
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
			}
			if err := config.SaveConfig(configPath, config.DefaultConfig()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("Wrote %s\n", configPath)
			fmt.Println("Set server.domain (or VANCHAT_SERVER_DOMAIN) before chatting.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	return cmd
}

func newChatCommand() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or resume an interactive conversation",
		Long:  "Run an interactive conversation, or send a one-shot message and print the reply.",
		Example: strings.Join([]string{
			"  vanchat chat",
			"  vanchat chat --profile support",
			"  vanchat chat --message \"when does my order ship?\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "default", "Named conversation profile to resume")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "One-shot message instead of the interactive loop")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "Chat server domain (overrides config)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Language code, e.g. en-US")
	cmd.Flags().StringVar(&opts.skill, "skill", "", "Skill to route the conversation to")
	cmd.Flags().BoolVar(&opts.fresh, "fresh", false, "Ignore the stored profile and start a new conversation")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newPanelCommand() *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:     "panel",
		Short:   "Fetch and print the server's panel configuration",
		Example: "  vanchat panel --domain chat.example.com",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPanel(cmd.Context(), domain)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Chat server domain (overrides config)")
	return cmd
}

func newDownloadCommand() *cobra.Command {
	var (
		profile string
		out     string
	)

	cmd := &cobra.Command{
		Use:     "download",
		Short:   "Download the transcript of a stored conversation",
		Example: "  vanchat download --profile support --out transcript.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.Context(), profile, out)
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "default", "Conversation profile")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to file instead of stdout")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:     "delete",
		Short:   "Delete a stored conversation on the server and locally",
		Example: "  vanchat delete --profile support",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), profile)
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "default", "Conversation profile")
	return cmd
}

func newProfilesCommand() *cobra.Command {
	profilesRoot := &cobra.Command{
		Use:   "profiles",
		Short: "Manage stored conversation profiles",
	}

	profilesRoot.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List stored profiles",
		Example: "  vanchat profiles list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
				profiles, err := st.ListProfiles(ctx)
				if err != nil {
					return err
				}
				if len(profiles) == 0 {
					fmt.Println("No stored profiles.")
					return nil
				}
				for _, p := range profiles {
					conv := p.ConversationID
					if conv == "" {
						conv = "-"
					}
					fmt.Printf("  %-16s conversation=%s language=%s updated=%s\n",
						p.Name, conv, p.LanguageCode, p.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	})

	profilesRoot.AddCommand(&cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a stored profile (local only)",
		Args:    cobra.ExactArgs(1),
		Example: "  vanchat profiles remove support",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
				if err := st.DeleteProfile(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Removed profile %s\n", args[0])
				return nil
			})
		},
	})

	return profilesRoot
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  vanchat version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func withStore(fn func(context.Context, *store.SQLiteStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}
