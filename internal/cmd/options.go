package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ezerfernandes/mermaidcheck/internal/lint"
	"github.com/ezerfernandes/mermaidcheck/internal/mdcode"
	"github.com/ezerfernandes/mermaidcheck/internal/mermaid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configName = ".mermaidcheck"
	envPrefix  = "MERMAIDCHECK"

	keyRoot      = "root"
	keyExclude   = "exclude"
	keyMode      = "mode"
	keyParser    = "parser"
	keyNode      = "node"
	keyCommand   = "command"
	keyModuleDir = "module-dir"
	keyTheme     = "theme"
	keyTimeout   = "timeout"
	keyStats     = "stats"
	keyVerbose   = "verbose"
	keyQuiet     = "quiet"
	keyConfig    = "config"
)

type options struct {
	root      string
	exclude   []string
	mode      string
	parser    string
	node      string
	command   string
	moduleDir string
	theme     string
	timeout   time.Duration
	stats     bool
	verbose   bool
	quiet     bool

	open openFunc
}

func flags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.String(keyRoot, "", "directory to scan (default: repository of the working directory)")
	f.StringSlice(keyExclude, nil, "extra glob `pattern` of paths to skip (repeatable)")
	f.String(keyMode, mdcode.ModeRegex, "block extraction: regex or markdown")
	f.String(keyParser, mermaid.BackendNode, "parser backend: node or command")
	f.String(keyNode, mermaid.DefaultNode, "command line starting node")
	f.String(keyCommand, "", "shell `script` run per block by the command parser, {} is the diagram file")
	f.String(keyModuleDir, "", "directory the mermaid package is resolved from (default: root)")
	f.String(keyTheme, mermaid.DefaultConfig().Theme, "mermaid theme passed to initialize")
	f.Duration(keyTimeout, 0, "limit for a single block, 0 means none")
	f.Bool(keyStats, false, "print a per file table of blocks and failures")
	f.BoolP(keyVerbose, "v", false, "log progress to stderr")
	f.BoolP(keyQuiet, "q", false, "print failures only")
	f.String(keyConfig, "", "settings `file` (default: .mermaidcheck.yaml)")
}

// load merges flags, MERMAIDCHECK_* variables and the settings file, in that
// order of precedence.
func (o *options) load(cmd *cobra.Command, args []string) error {
	v := viper.New()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	repo, err := lint.ResolveRoot(wd)
	if err != nil {
		return err
	}

	if err := readConfig(v, wd, repo); err != nil {
		return err
	}

	o.root = v.GetString(keyRoot)
	if len(args) > 0 {
		o.root = args[0]
	}

	if len(o.root) == 0 {
		o.root = repo
	}

	if o.root, err = filepath.Abs(o.root); err != nil {
		return err
	}

	info, err := os.Stat(o.root)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", o.root)
	}

	o.exclude = v.GetStringSlice(keyExclude)
	o.mode = v.GetString(keyMode)
	o.parser = v.GetString(keyParser)
	o.node = v.GetString(keyNode)
	o.command = v.GetString(keyCommand)
	o.moduleDir = v.GetString(keyModuleDir)
	o.theme = v.GetString(keyTheme)
	o.timeout = v.GetDuration(keyTimeout)
	o.stats = v.GetBool(keyStats)
	o.verbose = v.GetBool(keyVerbose)
	o.quiet = v.GetBool(keyQuiet)

	return nil
}

func readConfig(v *viper.Viper, paths ...string) error {
	if file := v.GetString(keyConfig); len(file) != 0 {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}

		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")

	for _, p := range paths {
		v.AddConfigPath(p)
	}

	err := v.ReadInConfig()

	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}

	return nil
}

func (o *options) level() slog.Level {
	if o.verbose {
		return slog.LevelDebug
	}

	return slog.LevelWarn
}
