package main

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/flemzord/tgcourier/internal/delivery"
	"github.com/flemzord/tgcourier/pkg/app"
	"github.com/spf13/cobra"
)

// openCourier loads the configuration named by the persistent --config
// flag and the Telegram channel from it.
func openCourier(cmd *cobra.Command) (*app.Courier, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	env, err := app.Prepare(app.RunParams{ConfigPath: cfgPath, LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return nil, err
	}
	return app.OpenCourier(env)
}

// readText returns the --text flag, or stdin when the flag is "-".
func readText(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("text")
	if text != "-" {
		return text, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func sendCmd() *cobra.Command {
	var (
		chatID  int64
		mode    string
		replyTo int
		silent  bool
		preview bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message once and print the resulting message ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readText(cmd)
			if err != nil {
				return err
			}
			c, err := openCourier(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			m, err := c.Mode(mode)
			if err != nil {
				return err
			}
			out, err := c.Send(cmd.Context(), delivery.SendRequest{
				ChatID:      chatID,
				Text:        text,
				Mode:        m,
				ReplyTo:     replyTo,
				Silent:      silent,
				ShowPreview: preview,
			})
			if err != nil {
				var de *delivery.DeliveryError
				if errors.As(err, &de) && len(de.MessageIDs) > 0 {
					_ = printJSON(cmd, out)
				}
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "Target chat id")
	cmd.Flags().String("text", "", `Message text ("-" reads stdin)`)
	cmd.Flags().StringVar(&mode, "mode", "", "Rich-text mode: none, basic or strict (default from config)")
	cmd.Flags().IntVar(&replyTo, "reply-to", 0, "Message id to reply to")
	cmd.Flags().BoolVar(&silent, "silent", false, "Send without notification")
	cmd.Flags().BoolVar(&preview, "preview", false, "Show link previews")
	_ = cmd.MarkFlagRequired("chat")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func editCmd() *cobra.Command {
	var (
		chatID    int64
		messageID int
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Replace the text of a sent message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readText(cmd)
			if err != nil {
				return err
			}
			c, err := openCourier(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			m, err := c.Mode(mode)
			if err != nil {
				return err
			}
			changed, err := c.Edit(cmd.Context(), delivery.EditRequest{
				ChatID:    chatID,
				MessageID: messageID,
				Text:      text,
				Mode:      m,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]bool{"changed": changed})
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "Chat id")
	cmd.Flags().IntVar(&messageID, "message", 0, "Message id to edit")
	cmd.Flags().String("text", "", `New text ("-" reads stdin)`)
	cmd.Flags().StringVar(&mode, "mode", "", "Rich-text mode: none, basic or strict (default from config)")
	_ = cmd.MarkFlagRequired("chat")
	_ = cmd.MarkFlagRequired("message")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
