package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/export"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Inspect and administer stored candidate records",
}

var candidatesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export candidates to an XLSX report, ranked by screening score",
	Run: func(cmd *cobra.Command, _ []string) {
		pg, logger := knowledgeDB(cmd.Context())
		defer pg.Close()

		records, err := pg.ListCandidates(cmd.Context())
		if err != nil {
			logger.Fatal("listing candidates", zap.Error(err))
		}

		out, _ := cmd.Flags().GetString("out")
		if err := export.CandidatesToExcel(records, out); err != nil {
			logger.Fatal("writing report", zap.Error(err))
		}
		fmt.Printf("exported %d candidates to %s\n", len(records), out)
	},
}

var candidatesPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every candidate record and conversation transcript",
	Run: func(cmd *cobra.Command, _ []string) {
		confirm := promptui.Prompt{
			Label:     "Delete ALL candidate records and transcripts",
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Println("aborted")
			return
		}

		pg, logger := knowledgeDB(cmd.Context())
		defer pg.Close()

		deleted, err := pg.PurgeCandidates(cmd.Context())
		if err != nil {
			logger.Fatal("purging candidates", zap.Error(err))
		}
		fmt.Printf("deleted %d candidates\n", deleted)
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(candidatesExportCmd, candidatesPurgeCmd)

	candidatesExportCmd.Flags().String("out", "hireline-candidates.xlsx", "output file path")
}
