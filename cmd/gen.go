package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/itiky/optimistic-sync/storage"
)

const (
	FlagFilePath        = "file-path"
	FlagSessionCount    = "session-count"
	FlagMessagesPerSess = "messages-per-session"
)

// GetGenerateCmd returns generate mock data command.
func GetGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate mock session data",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			filePath, err := cmd.Flags().GetString(FlagFilePath)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagFilePath, err)
			}
			sessionCount, err := cmd.Flags().GetInt(FlagSessionCount)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagSessionCount, err)
			}
			messagesPerSession, err := cmd.Flags().GetInt(FlagMessagesPerSess)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagMessagesPerSess, err)
			}

			// Work
			if err := storage.GenAndSaveSessions(filePath, sessionCount, messagesPerSession); err != nil {
				log.Fatalf("gen failed: %v", err)
			}
		},
	}
	cmd.Flags().String(FlagFilePath, "./sessions_v0.dat", "(optional) output file path")
	cmd.Flags().Int(FlagSessionCount, 100, "(optional) number of sessions")
	cmd.Flags().Int(FlagMessagesPerSess, 50, "(optional) seeded messages per session")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetGenerateCmd())
}
