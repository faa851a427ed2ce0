package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/lojasmm/chatwidget/internal/reply"
	"github.com/lojasmm/chatwidget/internal/store"
	"github.com/lojasmm/chatwidget/internal/widget"
)

func newSendCmd() *cobra.Command {
	var (
		tab    string
		apiURL string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message through a headless widget and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			wcfg := cfg.Widget
			if apiURL != "" {
				wcfg.APIURL = apiURL
			}

			backend, err := store.Open(cfg.StoreOptions())
			if err != nil {
				return errors.Wrap(err, "opening storage")
			}
			defer backend.Close()

			w, err := widget.Init(cmd.Context(), wcfg, store.Scoped(backend, tab), widget.WithLogger(logger))
			if err != nil {
				return err
			}
			defer w.Destroy()

			r, err := sendOne(cmd.Context(), w, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			printReply(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "cli", "storage scope, reuse it to continue a conversation")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "chat endpoint (overrides WIDGET_API_URL)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the normalized reply as JSON")
	return cmd
}

func sendOne(ctx context.Context, w *widget.Widget, message string) (reply.Reply, error) {
	w.SetInput(message)
	if !w.Send(ctx) {
		return reply.Reply{}, errors.New("nothing to send")
	}
	w.Wait()
	h := w.History()
	return h[len(h)-1].Text, nil
}

func printReply(out io.Writer, r reply.Reply) {
	for _, seg := range r.Segments {
		if seg.Content != "" {
			fmt.Fprintln(out, seg.Content)
		}
		if !seg.HasCarousel() {
			continue
		}
		for _, p := range seg.Products {
			line := "  - " + p.Title
			if price := p.Current().Text(); price != "" {
				line += "  " + strings.TrimSpace(price+" "+p.Currency)
			}
			if p.Discounted() {
				line += " (was " + p.OriginalPrice.Text() + ")"
			}
			if p.URL != "" {
				line += "  " + p.URL
			}
			fmt.Fprintln(out, line)
		}
	}
}
