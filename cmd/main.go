// Package main is the entry point for squeeze.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/compresr/squeeze/internal/config"
	"github.com/compresr/squeeze/internal/gateway"
	"github.com/compresr/squeeze/internal/monitoring"
)

// ANSI color codes
const (
	squeezeGreen = "\033[38;2;23;128;68m" // #178044
	bold         = "\033[1m"
	reset        = "\033[0m"
)

// ASCII banner for startup
const banner = `
 ███████╗ ██████╗ ██╗   ██╗███████╗███████╗███████╗███████╗
 ██╔════╝██╔═══██╗██║   ██║██╔════╝██╔════╝╚══███╔╝██╔════╝
 ███████╗██║   ██║██║   ██║█████╗  █████╗    ███╔╝ █████╗
 ╚════██║██║▄▄ ██║██║   ██║██╔══╝  ██╔══╝   ███╔╝  ██╔══╝
 ███████║╚██████╔╝╚██████╔╝███████╗███████╗███████╗███████╗
 ╚══════╝ ╚══▀▀═╝  ╚═════╝ ╚══════╝╚══════╝╚══════╝╚══════╝
`

func printBanner(w io.Writer) {
	fmt.Fprint(w, squeezeGreen+bold+banner+reset+"\n")
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	if dir := getConfigDir(); dir != "" {
		configEnv := filepath.Join(dir, ".env")
		if _, err := os.Stat(configEnv); err == nil {
			_ = godotenv.Load(configEnv)
		}
	}

	// Local .env only fills variables that are still unset
	_ = godotenv.Load()
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		// `make 2>&1 | squeeze` compacts; a bare interactive call prints help
		if stdinIsTerminal() {
			printHelp(stdout)
			return 0
		}
		return exitCode(runCompact(nil, stdin, stdout, stderr, false), stderr)
	}

	switch args[0] {
	case "serve", "start":
		return exitCode(runGatewayServer(args[1:], stderr), stderr)
	case "compact", "c":
		return exitCode(runCompact(args[1:], stdin, stdout, stderr, stdinIsTerminal()), stderr)
	case "config":
		return exitCode(runConfig(args[1:], stdout, stderr), stderr)
	case "usage":
		return exitCode(runUsage(args[1:], stdout, stderr), stderr)
	case "version", "-v", "--version":
		PrintVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printHelp(stdout)
		return 0
	default:
		if strings.HasPrefix(args[0], "-") {
			return exitCode(runCompact(args, stdin, stdout, stderr, stdinIsTerminal()), stderr)
		}
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printHelp(stderr)
		return 2
	}
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// errUsage marks command-line mistakes (exit code 2).
var errUsage = errors.New("usage error")

// resolveServeConfig resolves the config for the serve command.
// Checks: user flag -> filesystem locations -> embedded config.
// Returns raw bytes and source description.
func resolveServeConfig(userConfig string) ([]byte, string, error) {
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	var searchPaths []string
	if dir := getConfigDir(); dir != "" {
		searchPaths = append(searchPaths, filepath.Join(dir, "config.yaml"))
	}
	searchPaths = append(searchPaths, "squeeze.yaml", filepath.Join("configs", "squeeze.yaml"))

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	data, err := getEmbeddedConfig(defaultConfigName)
	if err != nil {
		return nil, "", fmt.Errorf("no config file found, specify --config path: %w", err)
	}
	return data, "(embedded) " + defaultConfigName + ".yaml", nil
}

// runGatewayServer starts the HTTP/websocket server and blocks until a
// shutdown signal arrives.
func runGatewayServer(args []string, stderr io.Writer) error {
	loadEnvFiles()

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*noBanner {
		printBanner(stderr)
	}

	setupLogging(*debug, stderr)

	configData, configSource, err := resolveServeConfig(*configPath)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromBytes(configData)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configSource, err)
	}
	if *debug {
		cfg.Monitoring.LogLevel = "debug"
	}
	monitoring.Global(cfg.Monitoring.LoggerConfig())

	log.Info().
		Str("version", Version).
		Str("config", configSource).
		Int("port", cfg.Server.Port).
		Str("log_output_strategy", cfg.Pipes.LogOutput.Strategy).
		Bool("forwarder", cfg.Forwarder.Enabled).
		Bool("usage", cfg.Usage.Enabled).
		Msg("squeeze starting")

	gw, err := gateway.New(cfg)
	if err != nil {
		return err
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := gw.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("gateway shutdown error")
		}
	}()

	if err := gw.Start(); err != nil {
		return err
	}

	log.Info().Msg("squeeze stopped")
	return nil
}

// runConfig prints an embedded config, or validates a config file.
func runConfig(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	list := fs.Bool("list", false, "list embedded configs")
	check := fs.String("check", "", "validate a config file and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *list:
		names, err := listEmbeddedConfigs()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(stdout, name)
		}
		return nil
	case *check != "":
		cfg, err := config.Load(*check)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: ok (port %d, log_output %s, prompt %s)\n",
			*check, cfg.Server.Port, cfg.Pipes.LogOutput.Strategy, cfg.Pipes.Prompt.Strategy)
		return nil
	}

	name := defaultConfigName
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	data, err := getEmbeddedConfig(name)
	if err != nil {
		return fmt.Errorf("%w: no embedded config %q", errUsage, name)
	}
	_, err = stdout.Write(data)
	return err
}

// setupLogging configures zerolog for the CLI.
// Logs always go to out (stderr) so stdout stays clean for piping.
func setupLogging(debug bool, out io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	})

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// printHelp prints usage information
func printHelp(w io.Writer) {
	printBanner(w)
	fmt.Fprintln(w, "squeeze - compact terminal and log output for language models")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  <command> 2>&1 | squeeze")
	fmt.Fprintln(w, "  squeeze [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  compact      Compact a file, stdin, or the clipboard")
	fmt.Fprintln(w, "  serve        Start the HTTP/websocket server")
	fmt.Fprintln(w, "  config       Print the default config, or --check FILE")
	fmt.Fprintln(w, "  usage        Show recorded usage statistics")
	fmt.Fprintln(w, "  version      Print version information")
	fmt.Fprintln(w, "  help         Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Compact Options:")
	fmt.Fprintln(w, "  squeeze compact [FILE] [--tail N] [--strip sgr|all] [--clipboard] [--copy]")
	fmt.Fprintln(w, "                  [--json] [--stats] [--model NAME] [--usage-db PATH]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server Options:")
	fmt.Fprintln(w, "  squeeze serve [--config FILE] [--debug] [--no-banner]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  go test ./... 2>&1 | squeeze --stats")
	fmt.Fprintln(w, "  squeeze compact build.log --tail 100")
	fmt.Fprintln(w, "  squeeze compact --clipboard --copy      Compact what you just copied")
	fmt.Fprintln(w, "  squeeze serve --config squeeze.yaml")
}
