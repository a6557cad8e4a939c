package main

import (
	"log"
	"net"
	"net/rpc"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itiky/optimistic-sync/service/server"
	"github.com/itiky/optimistic-sync/storage"
)

const (
	FlagPort            = "port"
	FlagStreamTickDur   = "stream-tick-period"
	FlagStreamTickCount = "stream-tick-count"
)

// GetServerCmd returns RPC-server start command.
func GetServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start RPC server",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			port, err := cmd.Flags().GetInt(FlagPort)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagPort, err)
			}
			tickDur, err := cmd.Flags().GetDuration(FlagStreamTickDur)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagStreamTickDur, err)
			}
			tickCount, err := cmd.Flags().GetInt(FlagStreamTickCount)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagStreamTickCount, err)
			}
			filePath, err := cmd.Flags().GetString(FlagFilePath)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagFilePath, err)
			}

			// Init the store (empty or file bootstrapped)
			store := storage.NewStore()
			if filePath != "" {
				store, err = storage.NewStoreFromFile(filePath)
				if err != nil {
					log.Fatalf("storage.NewStoreFromFile: %v", err)
				}
			}

			// Init service
			svc, err := server.NewSyncService(store, tickDur, tickCount)
			if err != nil {
				log.Fatalf("service init: %v", err)
			}

			// Start server
			if err := rpc.Register(svc); err != nil {
				log.Fatalf("RPC server: register: %v", err)
			}
			svc.Start()

			listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
			if err != nil {
				log.Fatalf("RPC server: listen: %v", err)
			}
			defer listener.Close()

			go rpc.Accept(listener)

			log.Printf("RPC server started: :%d", port)

			// Wait for signal
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			<-signalCh

			svc.Stop()
		},
	}
	cmd.Flags().Int(FlagPort, 2412, "(optional) server port")
	cmd.Flags().Duration(FlagStreamTickDur, 250*time.Millisecond, "(optional) reply streaming tick period")
	cmd.Flags().Int(FlagStreamTickCount, 20, "(optional) reply streaming ticks per run")
	cmd.Flags().String(FlagFilePath, "", "(optional) path to generated sessions file")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetServerCmd())
}
