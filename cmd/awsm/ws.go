package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/wsclient"
)

const wsConnectionID = "cli"

func (a *app) wsCommand() *cobra.Command {
	var (
		mode    string
		sends   []string
		wait    time.Duration
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ws <url>",
		Short: "Open a WebSocket or Socket.IO connection, send messages and print the log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsMode := model.WebSocketMode(strings.ToLower(strings.TrimSpace(mode)))
			if wsMode != model.WebSocketRaw && wsMode != model.WebSocketSocketIO {
				return errdef.New(errdef.CodeValidation, "unknown mode %q (want raw or socket.io)", mode)
			}
			client := wsclient.New(wsclient.WithLogger(a.logger.Named("ws")))
			defer client.CloseAll()

			out := cmd.OutOrStdout()
			ready := make(chan struct{}, 1)
			onStatus := func(connected bool) {
				if connected {
					select {
					case ready <- struct{}{}:
					default:
					}
				}
			}
			dialCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := client.Connect(dialCtx, wsConnectionID, args[0], wsMode, printMessage(out), onStatus); err != nil {
				return err
			}
			select {
			case <-ready:
			case <-dialCtx.Done():
				return errdef.New(errdef.CodeHTTP, "connection to %s was not ready within %s", args[0], timeout)
			}

			for _, text := range sends {
				if err := client.Send(cmd.Context(), wsConnectionID, text); err != nil {
					return err
				}
			}
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-cmd.Context().Done():
				}
			}
			if client.IsConnected(wsConnectionID) {
				return client.Disconnect(wsConnectionID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(model.WebSocketRaw), "Connection mode: raw or socket.io")
	cmd.Flags().StringArrayVarP(&sends, "send", "s", nil, "Message to send once connected (repeatable)")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "How long to listen before disconnecting")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connection timeout")
	return cmd
}

func printMessage(w io.Writer) wsclient.MessageHandler {
	var mu sync.Mutex
	return func(msg model.WebSocketMessage) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[%s] %s\n", msg.Type, msg.Data)
	}
}
