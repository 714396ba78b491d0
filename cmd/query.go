package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cooksey99/nucleus/internal/embedclient"
	"github.com/Cooksey99/nucleus/internal/vectorstore"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Run a single chat query against the configured LLM backend",
	Long: `Runs one chat turn through the configured provider, optionally
injecting retrieved context from the vector store, and prints the
streamed response to stdout.

Example:
  nucleus query "How do I configure the embedded vector store?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Bool("no-rag", false, "skip retrieval-augmented context injection")
}

func runQuery(cmd *cobra.Command, args []string) error {
	noRAG, _ := cmd.Flags().GetBool("no-rag")
	question := strings.Join(args, " ")

	cfg, err := loadConfigForCommand()
	if err != nil {
		return err
	}

	ctx := context.Background()
	logger := slog.Default()

	registry := buildPluginRegistry(cfg)

	prov, err := buildProvider(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	var embedder embedclient.Provider
	var store vectorstore.Store
	if !noRAG {
		if e, eerr := buildEmbedder(cfg); eerr == nil {
			if s, serr := buildStore(ctx, cfg); serr == nil {
				embedder, store = e, s
				defer func() { _ = s.Close() }()
			} else {
				logger.Warn("query: vector store unavailable, proceeding without RAG context", "error", serr)
			}
		} else {
			logger.Warn("query: embedding client unavailable, proceeding without RAG context", "error", eerr)
		}
	}

	cm := newChatManagerFactory(ctx, cfg, prov, registry, embedder, store, logger)()
	_, err = cm.Query(ctx, question, func(delta string) {
		fmt.Print(delta)
	})
	fmt.Println()
	return err
}
