package main

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/solver-cli/internal/model"
)

var (
	batchFile        string
	batchConcurrency int
	batchOutput      string
)

var batchCmd = &cobra.Command{
	Use:   "batch [urls...]",
	Short: "Solve several independent task chains concurrently",
	Long:  "Runs one chain per start URL. Runs are independent: each gets its own fetch source and history; only read-only configuration is shared.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		urls := args
		if batchFile != "" {
			fromFile, err := readURLFile(batchFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return eris.New("batch: no start URLs given")
		}

		id := model.Identity{Email: cfg.Identity.Email, Secret: cfg.Identity.Secret}
		if id.Email == "" || id.Secret == "" {
			return eris.New("batch: identity email and secret must be configured")
		}

		var mu sync.Mutex
		summaries := make([]*model.RunSummary, 0, len(urls))

		g, gCtx := errgroup.WithContext(cmd.Context())
		g.SetLimit(batchConcurrency)

		for _, u := range urls {
			g.Go(func() error {
				runner := newRunner(cfg)
				summary := runner.Run(gCtx, id, u)
				mu.Lock()
				summaries = append(summaries, summary)
				mu.Unlock()

				zap.L().Info("batch: chain finished",
					zap.String("start_url", u),
					zap.String("status", string(summary.Status)),
					zap.Int("tasks", summary.Tasks),
				)
				return nil
			})
		}
		_ = g.Wait()

		for _, s := range summaries {
			if err := printSummary(s, batchOutput); err != nil {
				return err
			}
		}
		return nil
	},
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer func() { _ = f.Close() }()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "batch: read %s", path)
	}
	return urls, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one start URL per line")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 3, "maximum chains in flight")
	batchCmd.Flags().StringVar(&batchOutput, "output", "json", "output format: json or yaml")
	rootCmd.AddCommand(batchCmd)
}
