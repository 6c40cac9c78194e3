package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/sector-mail-desk/internal/app"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass over every enabled sector",
	Long: `Run reads the settings document, ingests labelled messages of every
enabled sector and prints the run report. A sector failure stops the run;
the partial report is still printed.`,
	Args: cobra.NoArgs,
	RunE: runIngestion,
}

var sweepSectorFlag string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove invalid and duplicate tickets of one sector",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepSectorFlag, "sector", "", "Sector to sweep (CHR, GMS, RHF, IND)")
	_ = sweepCmd.MarkFlagRequired("sector")
}

func connect(cmd *cobra.Command) (*app.Container, error) {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	container, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := container.ConnectMail(cmd.Context()); err != nil {
		container.Close()
		return nil, err
	}
	return container, nil
}

func runIngestion(cmd *cobra.Command, _ []string) error {
	container, err := connect(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	report, runErr := container.Ingestion.Run(cmd.Context())
	if report != nil {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	return runErr
}

func runSweep(cmd *cobra.Command, _ []string) error {
	sector, err := domain.ParseSector(sweepSectorFlag)
	if err != nil {
		return err
	}
	container, err := connect(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	result, err := container.Ingestion.Sweep(cmd.Context(), sector)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
