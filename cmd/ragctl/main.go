package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"oairag/internal/config"
	"oairag/internal/models"
	"oairag/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var apiURL string
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "operate an oairag deployment",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&apiURL, "api", cfg.PublicBaseURL, "base URL of the oairag API")
	client := func() *apiClient { return newAPIClient(apiURL) }

	root.AddCommand(
		migrateCmd(cfg),
		collectionsCmd(client),
		uploadCmd(client),
		chatCmd(client),
		summaryCmd(client),
	)
	return root
}

func migrateCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := storage.Migrate(ctx, cfg.PostgresURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func collectionsCmd(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "collections", Short: "manage collections"}

	var meta string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cmeta map[string]any
			if err := json.Unmarshal([]byte(meta), &cmeta); err != nil {
				return fmt.Errorf("--meta must be a JSON object: %w", err)
			}
			var out models.Collection
			if err := client().postJSON(cmd.Context(), "collection", map[string]any{"name": args[0], "cmetadata": cmeta}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	create.Flags().StringVar(&meta, "meta", "{}", "collection metadata as a JSON object")

	var page, size int
	list := &cobra.Command{
		Use:   "list",
		Short: "list collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out models.CollectionListModel
			path := "collection/list?page=" + strconv.Itoa(page) + "&size=" + strconv.Itoa(size)
			if err := client().getJSON(cmd.Context(), path, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&size, "size", 20, "page size")

	var withDocs bool
	get := &cobra.Command{
		Use:   "get NAME_OR_ID",
		Short: "show one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out models.Collection
			path := "collection/" + args[0] + "?with_documents=" + strconv.FormatBool(withDocs)
			if err := client().getJSON(cmd.Context(), path, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	get.Flags().BoolVar(&withDocs, "with-documents", false, "include member file names")

	cmd.AddCommand(create, list, get)
	return cmd
}

func uploadCmd(client func() *apiClient) *cobra.Command {
	var collection, callback string
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "upload a document for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := client().upload(cmd.Context(), args[0], collection, callback)
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection (server default when empty)")
	cmd.Flags().StringVar(&callback, "callback-url", "", "URL to notify when ingestion finishes")
	return cmd
}

func chatCmd(client func() *apiClient) *cobra.Command {
	var collection, document string
	var citations, usage bool
	cmd := &cobra.Command{
		Use:   "chat QUERY",
		Short: "ask a question against a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.ChatRequest{
				CollectionName:   collection,
				Query:            args[0],
				IncludeCitations: &citations,
				IncludeUsage:     usage,
			}
			if document != "" {
				req.Filter = &models.Filter{DocumentName: document}
			}
			var out models.ChatResponse
			if err := client().postJSON(cmd.Context(), "chat", req, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to search")
	cmd.Flags().StringVar(&document, "document", "", "restrict retrieval to one file name")
	cmd.Flags().BoolVar(&citations, "citations", true, "include citations")
	cmd.Flags().BoolVar(&usage, "usage", false, "include token usage")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func summaryCmd(client func() *apiClient) *cobra.Command {
	var req models.SummaryRequest
	cmd := &cobra.Command{
		Use:   "summary DOCUMENT_ID",
		Short: "fetch or generate a document summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out models.SummaryResponse
			accepted, err := client().postJSONAccepted(cmd.Context(), "document/"+args[0]+"/summary", req, &out)
			if err != nil {
				return err
			}
			if accepted {
				fmt.Fprintln(cmd.OutOrStdout(), "summary scheduled; poll the document for the result")
				return nil
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&req.Regenerate, "regenerate", false, "ignore the cached summary")
	cmd.Flags().BoolVar(&req.Synchronous, "sync", false, "wait for the summary")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
