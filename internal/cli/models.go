package cli

import (
	"fmt"
	"io"

	"reportqa/internal/models"
)

func runModels(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		if len(args) > 0 {
			fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		fmt.Fprintln(stdout, "Embedding models:")
		for _, id := range models.EmbeddingIDs() {
			model, err := models.LookupEmbedding(id)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return ExitError
			}
			fmt.Fprintf(stdout, "  %-50s %-12s %4d dims, %s\n", model.ID, model.Provider, model.Dimensions, model.Similarity)
		}
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Language models:")
		for _, id := range models.LanguageIDs() {
			model, err := models.LookupLanguage(id)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return ExitError
			}
			fmt.Fprintf(stdout, "  %-50s %-12s %6d tokens\n", model.ID, model.Provider, model.ContextTokens)
		}
		return ExitOK
	}
}
