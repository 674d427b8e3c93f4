package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spiffcs/morph/config"
	"github.com/spiffcs/morph/internal/convert"
	"github.com/spiffcs/morph/internal/log"
	"github.com/spiffcs/morph/internal/shutdown"
	"github.com/spiffcs/morph/internal/vertopal"
)

// NewCmdConvert creates the convert command.
func NewCmdConvert(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert files to another format (same as root morph)",
		Long: `Uploads each input file to the conversion service, waits for the
conversions to finish, and downloads the results next to the inputs.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, opts)
		},
	}

	addConvertFlags(cmd, opts)
	return cmd
}

// addConvertFlags adds the convert-specific flags to a command.
func addConvertFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.To, "to", "t", "", "Output format[-type], e.g. pdf or md-gfm")
	cmd.Flags().StringVarP(&opts.From, "from", "f", "", "Input format[-type] (default: detect from the file)")
	cmd.Flags().StringVar(&opts.FileList, "file-list", "", "Read additional input paths from a newline-delimited file")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", 0, "Simultaneous conversions (default: from config)")
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
}

func runConvert(cmd *cobra.Command, args []string, opts *Options) error {
	log.Initialize(opts.Verbosity, os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	outputFormat := opts.To
	if outputFormat == "" {
		outputFormat = cfg.DefaultOutputFormat
	}
	if outputFormat == "" {
		return fmt.Errorf("no output format given. Use --to or set default_output_format in the config")
	}

	files := append([]string{}, args...)
	if opts.FileList != "" {
		listed, err := readFileList(opts.FileList)
		if err != nil {
			return fmt.Errorf("failed to read file list: %w", err)
		}
		files = append(files, listed...)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = cfg.MaxConcurrent
	}

	client, err := vertopal.NewClient(vertopal.Credentials{
		Endpoint: cfg.Endpoint,
		AppID:    cfg.AppID,
	})
	if err != nil {
		return err
	}

	coord := shutdown.New()
	release := coord.Notify()
	defer release()

	runner := convert.NewRunner(client, coord, convert.WithMaxConcurrent(concurrency))
	summary := runner.Run(files, outputFormat, opts.From)

	if summary.Failed > 0 {
		// The dashboard has already shown per-file errors; the exit status
		// is for scripts.
		cmd.SilenceUsage = true
		return fmt.Errorf("%d of %d conversions failed", summary.Failed, summary.Total)
	}
	return nil
}

// readFileList reads a newline-delimited list of input paths. Blank lines
// and lines starting with # are skipped.
func readFileList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		files = append(files, line)
	}
	return files, nil
}
