package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hirelinehq/hireline/internal/knowledge"
	"github.com/hirelinehq/hireline/internal/logger"
	"github.com/hirelinehq/hireline/internal/store"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the knowledgebase entries that override the embedded defaults",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active knowledgebase entries",
	Run: func(cmd *cobra.Command, _ []string) {
		pg, logger := knowledgeDB(cmd.Context())
		defer pg.Close()

		category, _ := cmd.Flags().GetString("category")
		entries, err := pg.ListKnowledge(cmd.Context(), category)
		if err != nil {
			logger.Fatal("listing knowledge entries", zap.Error(err))
		}
		if len(entries) == 0 {
			fmt.Println("no entries (the embedded seed is serving)")
			return
		}

		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			out, err := yaml.Marshal(entries)
			if err != nil {
				logger.Fatal("encoding entries", zap.Error(err))
			}
			fmt.Print(string(out))
			return
		}
		for _, entry := range entries {
			fmt.Printf("%s/%s (%d fields)\n", entry.Category, entry.Key, len(entry.Value))
		}
	},
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <category> <key>",
	Short: "Add or update one entry from a YAML/JSON value file",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		pg, logger := knowledgeDB(cmd.Context())
		defer pg.Close()

		file, _ := cmd.Flags().GetString("file")
		data, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal("reading value file", zap.Error(err))
		}
		value := map[string]any{}
		// YAML is a superset of JSON, so one decoder covers both.
		if err := yaml.Unmarshal(data, &value); err != nil {
			logger.Fatal("parsing value file", zap.Error(err))
		}

		entry := knowledge.Entry{
			Category: strings.ToLower(args[0]),
			Key:      args[1],
			Value:    value,
			Active:   true,
		}
		if err := pg.UpsertKnowledge(cmd.Context(), entry, "cli"); err != nil {
			logger.Fatal("saving entry", zap.Error(err))
		}
		fmt.Printf("saved %s/%s\n", entry.Category, entry.Key)
	},
}

var knowledgeDeleteCmd = &cobra.Command{
	Use:   "delete <category> <key>",
	Short: "Soft-delete one entry; the embedded default takes over again",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Delete %s/%s", args[0], args[1]),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Println("aborted")
			return
		}

		pg, logger := knowledgeDB(cmd.Context())
		defer pg.Close()

		if err := pg.DeleteKnowledge(cmd.Context(), strings.ToLower(args[0]), args[1]); err != nil {
			logger.Fatal("deleting entry", zap.Error(err))
		}
		fmt.Printf("deleted %s/%s\n", args[0], args[1])
	},
}

var knowledgeRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the override entries and report what a running assistant would see",
	Run: func(cmd *cobra.Command, _ []string) {
		pg, logger := knowledgeDB(cmd.Context())
		defer pg.Close()

		ks, err := knowledge.New(logger, knowledge.WithSource(pg))
		if err != nil {
			logger.Fatal("building knowledge store", zap.Error(err))
		}
		if err := ks.Refresh(cmd.Context()); err != nil {
			logger.Fatal("refreshing knowledge", zap.Error(err))
		}
		snap := ks.Snapshot()
		fmt.Printf("roles: %d (%d active), faqs: %d, recruiter: %s\n",
			len(snap.RoleOrder), len(snap.ActiveRoles()), len(snap.FAQs), snap.Company.RecruiterName)
	},
}

var knowledgeSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the embedded defaults into the knowledgebase table",
	Run: func(cmd *cobra.Command, _ []string) {
		pg, logger := knowledgeDB(cmd.Context())
		defer pg.Close()

		ks, err := knowledge.New(logger)
		if err != nil {
			logger.Fatal("building knowledge store", zap.Error(err))
		}
		entries, err := ks.SeedEntries()
		if err != nil {
			logger.Fatal("rendering seed entries", zap.Error(err))
		}
		for _, entry := range entries {
			if err := pg.UpsertKnowledge(cmd.Context(), entry, "seed"); err != nil {
				logger.Fatal("seeding entry",
					zap.String("category", entry.Category),
					zap.String("key", entry.Key),
					zap.Error(err),
				)
			}
		}
		fmt.Printf("seeded %d entries\n", len(entries))
	},
}

func init() {
	rootCmd.AddCommand(knowledgeCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd, knowledgeAddCmd, knowledgeDeleteCmd, knowledgeRefreshCmd, knowledgeSeedCmd)

	knowledgeListCmd.Flags().String("category", "", "only this category (company, role, faq, style, objective)")
	knowledgeListCmd.Flags().Bool("yaml", false, "full YAML output instead of the summary")

	knowledgeAddCmd.Flags().String("file", "", "YAML or JSON file with the entry value")
	knowledgeAddCmd.MarkFlagRequired("file")
}

// knowledgeDB opens the Postgres store the admin commands operate on.
// These commands are pointless without a database, so a missing DSN is
// fatal here even though chat tolerates it.
func knowledgeDB(ctx context.Context) (*store.Postgres, *zap.Logger) {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}
	if config.Database == nil || strings.TrimSpace(config.Database.URL) == "" {
		zl.Fatal("a database is required",
			zap.String("hint", "set DATABASE_URL or the 'database.url' key in the configuration file"),
		)
	}

	pg, err := store.OpenPostgres(ctx, config.Database.URL, config.Database.ResumeDir, zl)
	if err != nil {
		zl.Fatal("connecting to database", zap.Error(err))
	}
	return pg, zl
}
