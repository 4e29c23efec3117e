// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var (
		port      int
		id        int
		msg       string
		timeoutMs int
		bridgeURL string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one request and print the acknowledgement",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("timeout-ms") {
				timeoutMs = int(cfg.Timeout() / time.Millisecond)
			}

			var result int
			var payload string
			if bridgeURL != "" {
				client := ipc.NewBridgeClient(bridgeURL, logger)
				reply, err := client.Send(cmd.Context(), ipc.SendArgs{
					Port:      port,
					ID:        id,
					Msg:       msg,
					TimeoutMs: timeoutMs,
				})
				if err != nil {
					return err
				}
				result, payload = reply.Result, reply.Msg
			} else {
				req := ipc.NewRequester(append(cfg.Options(), ipc.WithLogger(logger))...)
				reply, err := req.Send(cmd.Context(), port, id, msg, time.Duration(timeoutMs)*time.Millisecond)
				if err != nil {
					return err
				}
				result, payload = reply.Result, reply.Payload
			}

			fmt.Fprintf(cmd.OutOrStdout(), "result=%d msg=%q\n", result, payload)
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Target port on 127.0.0.1")
	cmd.Flags().IntVar(&id, "id", 0, "Message id")
	cmd.Flags().StringVarP(&msg, "msg", "m", "", "Message payload")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "Reply wait in milliseconds (default from config)")
	cmd.Flags().StringVar(&bridgeURL, "bridge", "", "Send through a JSON-RPC bridge at this URL instead")
	_ = cmd.MarkFlagRequired("port")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
