// pvault is a simple CLI for inspecting and editing a page store folder.
//
// Usage:
//
//	pvault [opts]
//
// Options:
//
//	-r, --root      Folder the store keeps its data under (default: from config)
//	-a, --app       Application name (default: from config)
//	-m, --max       Per-session byte budget (default: from config)
//	-c, --config    Explicit config file path (default: .pvault.json if present)
//
// Commands (in REPL):
//
//	sessions                       List sessions with stored pages
//	pages <sid>                    List page windows for a session
//	get <sid> <id>                 Retrieve a page and hex-dump its bytes
//	add <sid> <id> [type] [text]   Store a page with the given payload
//	rm <sid> <id>                  Remove a page
//	drop <sid>                     Remove all pages of a session
//	size                           Show bytes used across all sessions
//	help                           Show this help
//	exit / quit / q                Exit, persisting the index snapshot
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/pagevault/pkg/pagestore"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("pvault", flag.ExitOnError)

	root := fs.StringP("root", "r", "", "folder the store keeps its data under")
	app := fs.StringP("app", "a", "", "application name")
	maxBytes := fs.Int64P("max", "m", 0, "per-session byte budget")
	configPath := fs.StringP("config", "c", "", "explicit config file path")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pvault [options]\n\n")
		fmt.Fprintf(os.Stderr, "Open a page store folder and inspect it interactively.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	err := fs.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	cfg, err := LoadConfig(workDir, *configPath)
	if err != nil {
		return err
	}

	// Apply CLI overrides
	if *root != "" {
		cfg.StoreRoot = *root
	}

	if *app != "" {
		cfg.AppName = *app
	}

	if *maxBytes > 0 {
		cfg.MaxPerSession = *maxBytes
	}

	store, err := pagestore.NewDiskStore(pagestore.DiskStoreOptions{
		AppName:       cfg.AppName,
		Root:          cfg.StoreRoot,
		MaxPerSession: cfg.MaxPerSession,
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	if err != nil {
		if errors.Is(err, pagestore.ErrStoreLocked) {
			return fmt.Errorf("store folder is in use by another process: %w", err)
		}

		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Destroy()

	repl := &REPL{store: store, cfg: cfg}

	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	store *pagestore.DiskStore
	cfg   Config
	liner *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".pvault_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	// Set up liner for readline-style input
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	// Configure liner
	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	// Load history
	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("pvault - page store CLI (app=%s, root=%s, max_per_session=%d)\n",
		r.cfg.AppName, r.cfg.StoreRoot, r.cfg.MaxPerSession)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("pvault> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Add to history
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")

			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "sessions", "ls":
			r.cmdSessions()

		case "pages":
			r.cmdPages(args)

		case "get":
			r.cmdGet(args)

		case "add", "put":
			r.cmdAdd(args)

		case "rm", "del", "delete":
			r.cmdRemove(args)

		case "drop":
			r.cmdDrop(args)

		case "size":
			r.cmdSize()

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands.
func (r *REPL) completer(line string) []string {
	commands := []string{
		"sessions", "ls", "pages",
		"get", "add", "put",
		"rm", "del", "delete", "drop",
		"size", "clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  sessions                       List sessions with stored pages")
	fmt.Println("  pages <sid>                    List page windows for a session")
	fmt.Println("  get <sid> <id>                 Retrieve a page and hex-dump its bytes")
	fmt.Println("  add <sid> <id> [type] [text]   Store a page with the given payload")
	fmt.Println("  rm <sid> <id>                  Remove a page")
	fmt.Println("  drop <sid>                     Remove all pages of a session")
	fmt.Println("  size                           Show bytes used across all sessions")
	fmt.Println("  help                           Show this help")
	fmt.Println("  exit / quit / q                Exit, persisting the index snapshot")
}

// sessionContext builds a context for the given session identifier with
// the store's session marker already bound, so lookups resolve.
func (r *REPL) sessionContext(sid string) pagestore.Context {
	ctx := pagestore.NewMemoryContext(sid)
	r.store.ContextIdentifier(ctx)

	return ctx
}

func parsePageID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("page id must be an integer: %q", s)
	}

	return id, nil
}

func (r *REPL) cmdSessions() {
	ids := r.store.ContextIdentifiers()
	if len(ids) == 0 {
		fmt.Println("(no sessions)")

		return
	}

	for i, id := range ids {
		windows := r.store.PersistentPages(id)

		var bytes int64
		for _, w := range windows {
			bytes += int64(w.Length)
		}

		fmt.Printf("%3d. %s  pages=%d  bytes=%d\n", i+1, id, len(windows), bytes)
	}
}

func (r *REPL) cmdPages(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: pages <sid>")

		return
	}

	windows := r.store.PersistentPages(args[0])
	if len(windows) == 0 {
		fmt.Println("(no pages)")

		return
	}

	for i, w := range windows {
		fmt.Printf("%3d. page=%d  type=%s  offset=%d  length=%d\n",
			i+1, w.PageID, w.Type, w.Offset, w.Length)
	}
}

func (r *REPL) cmdGet(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: get <sid> <id>")

		return
	}

	id, err := parsePageID(args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	page, err := r.store.GetPage(r.sessionContext(args[0]), id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if page == nil {
		fmt.Println("(not found)")

		return
	}

	raw, ok := page.(*pagestore.RawPage)
	if !ok {
		fmt.Printf("Page:  %d (%T)\n", page.ID(), page)

		return
	}

	fmt.Printf("Page:  %d\n", raw.ID())
	fmt.Printf("Type:  %s\n", raw.Type())
	fmt.Printf("Bytes: %d\n", len(raw.Data()))
	fmt.Print(hex.Dump(raw.Data()))
}

func (r *REPL) cmdAdd(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: add <sid> <id> [type] [text]")

		return
	}

	id, err := parsePageID(args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	pageType := "manual"
	if len(args) >= 3 {
		pageType = args[2]
	}

	var data []byte
	if len(args) >= 4 {
		data = []byte(strings.Join(args[3:], " "))
	}

	r.store.AddPage(r.sessionContext(args[0]), pagestore.NewRawPage(id, pageType, data))

	fmt.Printf("OK: stored page %d (%d bytes)\n", id, len(data))
}

func (r *REPL) cmdRemove(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: rm <sid> <id>")

		return
	}

	id, err := parsePageID(args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	r.store.RemovePage(r.sessionContext(args[0]), pagestore.NewRawPage(id, "", nil))

	fmt.Printf("OK: removed page %d\n", id)
}

func (r *REPL) cmdDrop(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: drop <sid>")

		return
	}

	answer, err := r.liner.Prompt(fmt.Sprintf("Remove all pages of session %q? (yes/no): ", args[0]))
	if err != nil {
		fmt.Println("Cancelled.")

		return
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "yes" && answer != "y" {
		fmt.Println("Cancelled.")

		return
	}

	r.store.RemoveAllPages(r.sessionContext(args[0]))

	fmt.Printf("OK: dropped session %s\n", args[0])
}

func (r *REPL) cmdSize() {
	fmt.Printf("Total size: %d bytes across %d sessions\n",
		r.store.TotalSize(), len(r.store.ContextIdentifiers()))
}
