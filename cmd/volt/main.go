package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jrziviani/volt/pkg/scan"
	v "github.com/jrziviani/volt/pkg/validator"
	"github.com/jrziviani/volt/pkg/value"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var formats = []string{"text", "yaml"}

type voltConfig struct {
	Syntax scan.Syntax `yaml:"syntax"`
	Format string      `yaml:"format,omitempty"`
}

func defaultConfig() voltConfig {
	return voltConfig{Syntax: scan.DefaultSyntax(), Format: "text"}
}

func (c *voltConfig) loadConfig(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding config file: %w", err)
	}
	return c.validate()
}

func (c *voltConfig) validate() error {
	return v.All(
		c.Syntax.Validate(),
		v.MatchesAllowed(c.Format, formats, "format"),
	)
}

var (
	rootConfig string
	verbose    bool
	format     string
)

var rootCmd = cobra.Command{
	Use:           "volt",
	Short:         "Scan volt templates into text, code and echo blocks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// helper: load config, falling back to defaults when no file was given
func loadVoltConfig() (voltConfig, error) {
	cfg := defaultConfig()
	if rootConfig != "" {
		if err := cfg.loadConfig(rootConfig); err != nil {
			return cfg, fmt.Errorf("loading config: %w", err)
		}
	}
	if format != "" {
		cfg.Format = format
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var scanCmd = cobra.Command{
	Use:   "scan [file...]",
	Short: "Scan template files and print the blocks found",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadVoltConfig()
		if err != nil {
			return err
		}
		total := 0
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening template: %w", err)
			}
			n, err := scanTemplate(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, path, f)
			f.Close()
			if err != nil {
				return fmt.Errorf("scanning %s: %w", path, err)
			}
			total += n
		}
		if total > 0 {
			return fmt.Errorf("%d diagnostics reported", total)
		}
		return nil
	},
}

type templateBlocks struct {
	File   string        `yaml:"file"`
	Blocks scan.Metainfo `yaml:"blocks"`
}

// scanTemplate feeds r to a Scanner line by line, writes the blocks to out
// and the diagnostics to diag. It returns the number of diagnostics.
func scanTemplate(out, diag io.Writer, cfg voltConfig, name string, r io.Reader) (int, error) {
	rec := &scan.Recorder{Diagnostics: scan.Diagnostics{Logger: slog.Default()}}
	s, err := scan.NewWithSyntax(rec, cfg.Syntax)
	if err != nil {
		return 0, err
	}

	var blocks scan.Metainfo
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		s.Scan(sc.Text())
		blocks = append(blocks, s.Metainfo()...)
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("reading template: %w", err)
	}
	s.Finish()
	blocks = append(blocks, s.Metainfo()...)

	for _, err := range rec.Errors {
		fmt.Fprintf(diag, "%s: %v\n", name, err)
	}

	switch cfg.Format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		if err := enc.Encode(templateBlocks{File: name, Blocks: blocks}); err != nil {
			return 0, fmt.Errorf("encoding blocks: %w", err)
		}
		if err := enc.Close(); err != nil {
			return 0, err
		}
	default:
		for _, b := range blocks {
			fmt.Fprintf(out, "%s:%d\t%s\t%d-%d\t%q\n", name, b.Line, b.Type, b.Begin, b.End, b.Content)
		}
	}

	slog.Debug("scanned template", "file", name, "blocks", len(blocks), "diagnostics", len(rec.Errors))
	return len(rec.Errors), nil
}

var varsCmd = cobra.Command{
	Use:   "vars [file]",
	Short: "Print template variables from a YAML file as Starlark values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening variables file: %w", err)
		}
		defer f.Close()

		vars, err := loadVars(f)
		if err != nil {
			return fmt.Errorf("loading %s: %w", args[0], err)
		}
		return printVars(cmd.OutOrStdout(), vars)
	},
}

func loadVars(r io.Reader) (value.UserMap, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding variables: %w", err)
	}
	return value.NewUserMap(raw)
}

// printVars writes each variable as its Starlark value. Every value must
// convert back to a Var with the same rendering.
func printVars(w io.Writer, vars value.UserMap) error {
	table := vars.Table()
	for _, name := range vars.Names() {
		back, err := value.FromStarlark(table[name])
		if err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
		if got := value.ToStarlark(back).String(); got != table[name].String() {
			return fmt.Errorf("variable %s changed in conversion: %s != %s", name, got, table[name])
		}
		switch vars[name].(type) {
		case value.Uint, value.Int:
			if !value.FitsLiteral(vars[name]) {
				slog.Debug("value is wider than a template literal", "name", name)
			}
		}
		fmt.Fprintf(w, "%s = %s\n", name, table[name])
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfig, "config", "", "Path to volt configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	scanCmd.Flags().StringVar(&format, "format", "", "Output format: text or yaml")
	rootCmd.AddCommand(&scanCmd)

	rootCmd.AddCommand(&varsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
