package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"log-sentinel/internal/model"
	"log-sentinel/internal/parser"
	"log-sentinel/internal/store"
	"log-sentinel/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type replayOptions struct {
	asJSON    bool
	wallClock bool
}

func newReplayCommand(opts *options) *cobra.Command {
	ro := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Evaluate an existing log file and print the alerts",
		Long: `Run every line of file through the detection pipeline with an in-memory
store and print the alerts raised.

Threshold windows follow the timestamps written in the log lines, so a
historical file produces the alerts it would have produced live. Use
--wall-clock to measure windows with the current time instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, cleanup, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			config.Storage = utils.StorageConfig{Driver: store.DriverMemory}
			config.Alerting.Channels = []string{utils.ChannelMetrics}

			return runReplay(cmd.Context(), cmd.OutOrStdout(), config, logger, f, ro)
		},
	}

	cmd.Flags().BoolVar(&ro.asJSON, "json", false, "Print alerts as JSON lines")
	cmd.Flags().BoolVar(&ro.wallClock, "wall-clock", false, "Measure threshold windows with the current time")
	return cmd
}

// logClock reports the time of the line being replayed.
type logClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *logClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *logClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func runReplay(ctx context.Context, out io.Writer, config *utils.Config, logger *logrus.Logger, in io.Reader, ro *replayOptions) error {
	clock := &logClock{now: time.Now()}
	var now func() time.Time
	if !ro.wallClock {
		now = clock.Now
	}

	svc, err := newService(config, logger, now)
	if err != nil {
		return err
	}
	defer svc.Close()

	enc := json.NewEncoder(out)

	var lines, total int
	bySeverity := map[model.Severity]int{}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines++
		if !ro.wallClock {
			clock.set(parser.Parse(line).LoggedAt)
		}

		for _, a := range svc.processor.Process(ctx, line) {
			total++
			bySeverity[a.Severity]++
			if ro.asJSON {
				if err := enc.Encode(a); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(out, "%s [%s] %s log=%d ip=%s: %s\n",
				a.Timestamp.Format(model.TimestampLayout), a.Severity, a.RuleID, a.LogID, a.SourceIP, a.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if !ro.asJSON {
		fmt.Fprintf(out, "\n%d lines, %d alerts", lines, total)
		for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
			if n := bySeverity[sev]; n > 0 {
				fmt.Fprintf(out, ", %d %s", n, sev)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}
