package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/itiky/optimistic-sync/model"
	"github.com/itiky/optimistic-sync/service/client"
)

const (
	FlagServerUrl    = "server-url"
	FlagClientId     = "client-id"
	FlagSessionId    = "session-id"
	FlagSubmitPeriod = "submit-period"
	FlagPollPeriod   = "poll-period"
)

// GetClientCmd returns RPC-client start command.
func GetClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Start RPC client",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			serverUrl, err := cmd.Flags().GetString(FlagServerUrl)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagServerUrl, err)
			}
			clientId, err := cmd.Flags().GetString(FlagClientId)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagClientId, err)
			}
			sessionId, err := cmd.Flags().GetString(FlagSessionId)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagSessionId, err)
			}
			submitDur, err := cmd.Flags().GetDuration(FlagSubmitPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagSubmitPeriod, err)
			}
			pollDur, err := cmd.Flags().GetDuration(FlagPollPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagPollPeriod, err)
			}

			if clientId == "" {
				clientId = uuid.New().String()
			}
			if sessionId == "" {
				sessionId = uuid.New().String()
			}

			// Init service
			svc, err := client.NewClient(
				model.ClientId(clientId),
				model.SessionId(sessionId),
				submitDur,
				pollDur,
				serverUrl,
			)
			if err != nil {
				log.Fatalf("service init: %v", err)
			}

			svc.Start()

			// Wait for signal
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			<-signalCh

			svc.Stop()
		},
	}
	cmd.Flags().String(FlagClientId, "", "(optional) unique clientID (random if empty)")
	cmd.Flags().String(FlagSessionId, "", "(optional) sessionID to sync (random if empty)")
	cmd.Flags().String(FlagServerUrl, "127.0.0.1:2412", "(optional) server url")
	cmd.Flags().Duration(FlagSubmitPeriod, 1*time.Second, "(optional) operation submit period")
	cmd.Flags().Duration(FlagPollPeriod, 2*time.Second, "(optional) snapshot updates poll period")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetClientCmd())
}
