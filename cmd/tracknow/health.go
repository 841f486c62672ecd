package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tracknow/internal/client"
	"github.com/alfredjeanlab/tracknow/internal/server"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the tracknow service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		wait, _ := cmd.Flags().GetDuration("wait")

		ctx := context.Background()
		if wait > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, wait)
			defer cancel()
		}

		out := map[string]string{}
		status, err := apiClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		out["http"] = status

		if grpcAddr != "" {
			h, err := client.NewGRPCHealth(grpcAddr)
			if err != nil {
				return err
			}
			defer h.Close()
			if wait > 0 {
				if err := h.Wait(ctx, server.HealthService); err != nil {
					return err
				}
			}
			callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			grpcStatus, err := h.Check(callCtx, server.HealthService)
			if err != nil {
				return err
			}
			out["grpc"] = grpcStatus
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "HTTP: %s\n", out["http"])
			if s, ok := out["grpc"]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "gRPC: %s\n", s)
			}
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		if s, ok := out["grpc"]; ok && s != "SERVING" {
			return fmt.Errorf("gRPC not serving: %s", s)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", activeRemoteGRPCAddr(), "also probe the gRPC health service at this address")
	healthCmd.Flags().Duration("wait", 0, "wait up to this long for gRPC to report SERVING")
}
