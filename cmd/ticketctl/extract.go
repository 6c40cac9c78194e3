package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/extract"
	"github.com/spec-kit/sector-mail-desk/internal/ingest"
	"github.com/spec-kit/sector-mail-desk/internal/mail"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.eml>",
	Short: "Print the ticket fields extracted from a saved email",
	Long: `Extract parses a saved RFC 5322 message, runs the body and field
extractors on it and prints the fields together with the normalized ticket
number. No provider or store connection is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

type extractOutput struct {
	extract.TicketFields
	NormalizedTicketNumber string `json:"normalizedTicketNumber"`
	Subject                string `json:"subject"`
	From                   string `json:"from"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	msg, err := mail.LoadEML(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	fields := extract.ExtractFields(extract.NewBodyExtractor(zap.NewNop()).Extract(msg))
	return printJSON(cmd.OutOrStdout(), extractOutput{
		TicketFields:           fields,
		NormalizedTicketNumber: ingest.NormalizeTicketNumber(fields.TicketNumber),
		Subject:                msg.Header("Subject"),
		From:                   msg.Header("From"),
	})
}
