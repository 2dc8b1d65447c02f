package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"log-sentinel/internal/parser"

	"github.com/spf13/cobra"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse log lines and print the records as JSON",
		Long: `Parse every line of file, or of standard input when no file is given, and
print one JSON record per line. Lines that do not match the log layout are
still printed, with level UNKNOWN.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			return parseLines(in, cmd.OutOrStdout())
		},
	}
}

func parseLines(in io.Reader, out io.Writer) error {
	p := parser.New()
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := enc.Encode(p.Parse(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
