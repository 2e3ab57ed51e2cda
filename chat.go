package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/observe"
	"github.com/xiaot623/gogo/marketing/internal/service"
)

var (
	sessionID      string
	searchCategory string
	searchLimit    int
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Route one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.Service) error {
			res, err := svc.Chat(ctx, service.ChatRequest{
				Message:   strings.Join(args, " "),
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.ReplyText)
			fmt.Fprintf(out, "\nsession: %s\n", res.SessionID)
			if res.ReportID != "" {
				if path, err := svc.OpenReport(res.ReportID); err == nil {
					fmt.Fprintf(out, "report:  %s\n", path)
				}
			}
			for _, e := range res.Errors {
				fmt.Fprintf(out, "error:   %s\n", e)
			}
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored RAG documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.Service) error {
			docs, err := svc.SearchRagDocs(ctx, strings.Join(args, " "), searchCategory, searchLimit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "no documents found")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(out, "[%s] %s (%s)\n  %s\n", d.Category, d.Title, d.DocID, d.Content)
			}
			return nil
		})
	},
}

func init() {
	chatCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Continue an existing session")
	searchCmd.Flags().StringVarP(&searchCategory, "category", "c", "", "Restrict to one category (ad, product, review)")
	searchCmd.Flags().IntVarP(&searchLimit, "k", "k", 5, "Maximum number of documents")
}

// withService builds the service with console logging that only surfaces
// warnings, so command output stays readable.
func withService(fn func(context.Context, *service.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	obs := observe.New(os.Stderr, "warn")
	defer obs.Close()

	ctx := context.Background()
	svc, err := service.Build(ctx, cfg, obs, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(ctx, svc)
}
