package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hurttlocker/chatlift/internal/config"
	"github.com/hurttlocker/chatlift/internal/export"
	"github.com/hurttlocker/chatlift/internal/ingest"
	"github.com/hurttlocker/chatlift/internal/mcp"
	"github.com/hurttlocker/chatlift/internal/pipeline"
	"github.com/hurttlocker/chatlift/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "clear-dedup":
		err = runClearDedup(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("chatlift %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand that opens the store.
type commonFlags struct {
	configPath string
	dbPath     string
}

// splitFlag separates "--flag=value" and "--flag value" forms; returns the
// flag name, the inline value (if any), and whether an inline value was set.
func splitFlag(arg string) (name, value string, hasValue bool) {
	if i := strings.Index(arg, "="); i >= 0 {
		return arg[:i], arg[i+1:], true
	}
	return arg, "", false
}

// flagValue resolves a flag's value from the inline form or the next arg.
func flagValue(args []string, i int, inline string, hasInline bool) (string, int, error) {
	if hasInline {
		return inline, i, nil
	}
	if i+1 >= len(args) {
		return "", i, fmt.Errorf("%s requires a value", args[i])
	}
	return args[i+1], i + 1, nil
}

func resolve(common commonFlags, opts config.ResolveOptions) (config.ResolvedConfig, error) {
	opts.ConfigPath = common.configPath
	if common.dbPath != "" {
		opts.CLIDBPath = common.dbPath
	}
	return config.ResolveConfig(opts)
}

func openStore(cfg config.ResolvedConfig) (*store.SQLiteStore, error) {
	return store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
}

func pipelineOptions(cfg config.ResolvedConfig) (pipeline.Options, error) {
	opts := pipeline.Options{ExtraStickerPhrases: cfg.ExtraStickerPhrases}
	var err error
	if opts.VerticalGap, err = cfg.VerticalGap.IntValue(); err != nil {
		return opts, fmt.Errorf("vertical gap: %w", err)
	}
	if opts.HorizontalGap, err = cfg.HorizontalGap.IntValue(); err != nil {
		return opts, fmt.Errorf("horizontal gap: %w", err)
	}
	if opts.SplitXOverride, err = cfg.SplitX.IntValue(); err != nil {
		return opts, fmt.Errorf("split x: %w", err)
	}
	return opts, nil
}

func runImport(args []string) error {
	var (
		common commonFlags
		paths  []string
		iopts  ingest.ImportOptions
		cliDir string
		splitX string
	)

	for i := 0; i < len(args); i++ {
		name, inline, hasInline := splitFlag(args[i])
		switch name {
		case "--recursive", "-r":
			iopts.Recursive = true
		case "--dry-run", "-n":
			iopts.DryRun = true
		case "--chat":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			iopts.ChatName, i = v, ni
		case "--direction":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			cliDir, i = v, ni
		case "--split-x":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			splitX, i = v, ni
		case "--db":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			common.dbPath, i = v, ni
		case "--config":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			common.configPath, i = v, ni
		default:
			if strings.HasPrefix(name, "-") {
				return fmt.Errorf("unknown flag: %s", name)
			}
			paths = append(paths, args[i])
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("usage: chatlift import <path> [--recursive] [--dry-run] [--chat NAME] [--direction up|down]")
	}

	cfg, err := resolve(common, config.ResolveOptions{CLIDirection: cliDir, CLISplitX: splitX})
	if err != nil {
		return err
	}
	popts, err := pipelineOptions(cfg)
	if err != nil {
		return err
	}
	if cliDir != "" {
		iopts.Direction = cfg.Direction.Value
	} else {
		iopts.DefaultDirection = cfg.Direction.Value
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	engine := ingest.NewEngine(s, popts)
	ctx := context.Background()

	if iopts.DryRun {
		fmt.Println("Dry run mode — no changes will be written")
		fmt.Println()
	}

	total := &ingest.ImportResult{}
	for _, path := range paths {
		fmt.Printf("Importing %s...\n", path)
		iopts.ProgressFn = func(current, totalFiles int, file string) {
			fmt.Printf("  [%d/%d] %s\n", current, totalFiles, file)
		}
		result, err := engine.ImportFile(ctx, path, iopts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			continue
		}
		total.Add(result)
	}

	fmt.Println()
	fmt.Print(ingest.FormatImportResult(total))
	return nil
}

func runSearch(args []string) error {
	var (
		common commonFlags
		query  []string
		limit  = 20
	)

	for i := 0; i < len(args); i++ {
		name, inline, hasInline := splitFlag(args[i])
		switch name {
		case "--limit":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			if _, err := fmt.Sscanf(v, "%d", &limit); err != nil {
				return fmt.Errorf("invalid limit %q", v)
			}
			i = ni
		case "--db":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			common.dbPath, i = v, ni
		case "--config":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			common.configPath, i = v, ni
		default:
			if strings.HasPrefix(name, "-") {
				return fmt.Errorf("unknown flag: %s", name)
			}
			query = append(query, args[i])
		}
	}
	if len(query) == 0 {
		return fmt.Errorf("usage: chatlift search <query> [--limit N]")
	}

	cfg, err := resolve(common, config.ResolveOptions{})
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	results, err := s.SearchMessages(context.Background(), strings.Join(query, " "), limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, r := range results {
		m := r.Message
		fmt.Printf("%s  %-6s %-7s %s\n",
			m.Timestamp.Format("2006-01-02 15:04"), m.Sender, m.Type, r.Snippet)
	}
	return nil
}

func runExport(args []string) error {
	var (
		common    commonFlags
		formatStr string
		sessionID string
		outPath   string
	)

	for i := 0; i < len(args); i++ {
		name, inline, hasInline := splitFlag(args[i])
		switch name {
		case "--format", "-f":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			formatStr, i = v, ni
		case "--session":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			sessionID, i = v, ni
		case "--out", "-o":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			outPath, i = v, ni
		case "--db":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			common.dbPath, i = v, ni
		case "--config":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return err
			}
			common.configPath, i = v, ni
		default:
			return fmt.Errorf("unknown flag: %s", name)
		}
	}

	cfg, err := resolve(common, config.ResolveOptions{})
	if err != nil {
		return err
	}
	if formatStr == "" {
		formatStr = cfg.ExportFormat.Value
	}
	format, err := export.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	msgs, err := s.ListMessages(ctx, store.ListOpts{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}

	chatName := ""
	if sessionID != "" {
		if sess, err := s.GetSession(ctx, sessionID); err == nil {
			chatName = sess.ChatName
		}
	}

	out := os.Stdout
	if outPath == "" && cfg.ExportDir.Source != config.SourceDefault {
		name := chatName
		if name == "" {
			name = "transcript"
		}
		name += "-" + time.Now().Format("20060102-150405")
		outPath = filepath.Join(cfg.ExportDir.Value, name+format.Extension())
	}
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	if err := export.Write(out, format, chatName, msgs); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "Exported %d messages to %s\n", len(msgs), outPath)
	}
	return nil
}

func runStats(args []string) error {
	common, err := parseCommonOnly(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(common, config.ResolveOptions{})
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	st, err := s.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	fmt.Printf("Sessions:  %d\n", st.SessionCount)
	fmt.Printf("Messages:  %d\n", st.MessageCount)
	fmt.Printf("Seen keys: %d\n", st.SeenKeyCount)
	fmt.Printf("Events:    %d\n", st.EventCount)
	fmt.Printf("DB size:   %d bytes\n", st.DBSizeBytes)
	return nil
}

func runClearDedup(args []string) error {
	common, err := parseCommonOnly(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(common, config.ResolveOptions{})
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	if err := s.ClearDedupIndex(context.Background()); err != nil {
		return err
	}
	fmt.Println("Dedup index cleared. Previously seen messages will import as new.")
	return nil
}

func runMCP(args []string) error {
	common, err := parseCommonOnly(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(common, config.ResolveOptions{})
	if err != nil {
		return err
	}
	popts, err := pipelineOptions(cfg)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	srv := mcp.NewServer(mcp.ServerConfig{Store: s, Version: version, Opts: popts})
	return mcp.ServeStdio(srv)
}

func runConfig(args []string) error {
	common, err := parseCommonOnly(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(common, config.ResolveOptions{})
	if err != nil {
		return err
	}

	show := func(name string, v config.ResolvedValue) {
		val := v.Value
		if val == "" {
			val = "(unset)"
		}
		fmt.Printf("%-15s %-40s %s", name, val, v.Source)
		if v.From != "" {
			fmt.Printf(" (%s)", v.From)
		}
		fmt.Println()
	}
	fmt.Printf("Config file: %s\n\n", cfg.ConfigPath)
	show("db_path", cfg.DBPath)
	show("direction", cfg.Direction)
	show("vertical_gap", cfg.VerticalGap)
	show("horizontal_gap", cfg.HorizontalGap)
	show("split_x", cfg.SplitX)
	show("export_dir", cfg.ExportDir)
	show("export_format", cfg.ExportFormat)
	if len(cfg.ExtraStickerPhrases) > 0 {
		fmt.Printf("%-15s %s\n", "sticker_words", strings.Join(cfg.ExtraStickerPhrases, ", "))
	}
	return nil
}

func parseCommonOnly(args []string) (commonFlags, error) {
	var common commonFlags
	for i := 0; i < len(args); i++ {
		name, inline, hasInline := splitFlag(args[i])
		switch name {
		case "--db":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return common, err
			}
			common.dbPath, i = v, ni
		case "--config":
			v, ni, err := flagValue(args, i, inline, hasInline)
			if err != nil {
				return common, err
			}
			common.configPath, i = v, ni
		default:
			return common, fmt.Errorf("unknown flag: %s", name)
		}
	}
	return common, nil
}

func printUsage() {
	fmt.Printf(`chatlift %s — Chat transcript reconstruction from OCR captures

Usage:
  chatlift <command> [arguments]

Commands:
  import <path>       Import capture files (json, yaml, csv) or directories
  search <query>      Full-text search over stored messages
  export              Export transcripts (json, markdown, csv, text)
  stats               Show store statistics
  clear-dedup         Clear the cross-capture dedup index
  mcp                 Serve the MCP server over stdio
  config              Print the effective configuration with provenance
  version             Print version

Import Flags:
  -r, --recursive     Recursively import from directories
  -n, --dry-run       Parse without writing
      --chat NAME     Override the chat name for created sessions
      --direction D   Scan direction: up or down
      --split-x N     Sender split line override in pixels

Export Flags:
  -f, --format F      json, markdown, csv or text
      --session ID    Export one session only
  -o, --out PATH      Write to a file instead of stdout

Common Flags:
      --db PATH       SQLite database path
      --config PATH   Config file path (default ~/.chatlift/config.yaml)
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
