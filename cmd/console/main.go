// Command console drives the gateway from a terminal, using the same
// interaction controller as the browser client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/semisearch/gateway/internal/backend"
	"github.com/semisearch/gateway/internal/config"
	"github.com/semisearch/gateway/internal/frontend"
	"github.com/semisearch/gateway/internal/logging"
)

var quickQuestions = []string{
	"What voltage regulators are available?",
	"Which components come in a SOT-23 package?",
	"List all parts from Texas Instruments",
	"What is the operating temperature range of the microcontrollers?",
}

func main() {
	gatewayURL := flag.String("gateway", envOr("GATEWAY_URL", "http://localhost:3000"), "gateway base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "per-request timeout")
	logLevel := flag.String("log-level", "warn", "log level (debug|info|warn|error)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := logging.New(os.Stderr, config.LoggingConfig{Level: *logLevel})
	gw := frontend.NewHTTPGateway(*gatewayURL, backend.Options{Timeout: *timeout, Logger: logger})
	c := frontend.NewController(gw, nil, logger)

	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		printNotifications(c.State())
		os.Exit(1)
	}
	printNotifications(c.State())
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: console [flags] <command> [args]

Commands:
  status              check connectivity and show collection info
  upload <file>       upload an .xlsx or .xls file
  ask <question...>   ask a question
  quick <n>           ask quick question n (1-%d)

Flags:
`, len(quickQuestions))
	flag.PrintDefaults()
}

func run(ctx context.Context, c *frontend.Controller, cmd string, args []string) error {
	switch cmd {
	case "status":
		c.Start(ctx)
		printStatus(c.View())
		return nil

	case "upload":
		if len(args) != 1 {
			return fmt.Errorf("upload takes exactly one file")
		}
		return upload(ctx, c, args[0])

	case "ask":
		err := c.Ask(ctx, strings.Join(args, " "))
		printAnswer(c.State())
		return err

	case "quick":
		n, err := strconv.Atoi(strings.Join(args, ""))
		if err != nil || n < 1 || n > len(quickQuestions) {
			return fmt.Errorf("quick takes a number between 1 and %d", len(quickQuestions))
		}
		color.New(color.FgHiBlack).Printf("Q: %s\n", quickQuestions[n-1])
		err = c.QuickAsk(ctx, quickQuestions[n-1])
		printAnswer(c.State())
		return err

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func upload(ctx context.Context, c *frontend.Controller, path string) error {
	f, err := os.Open(path)
	if err != nil {
		color.Red("cannot open %s: %v", path, err)
		return err
	}
	defer f.Close()

	err = c.Upload(ctx, frontend.File{Name: filepath.Base(path), Content: f})
	s := c.State()
	if r := s.UploadResult; r != nil {
		if r.Success {
			color.Green("Success! %s", r.Message)
			fmt.Printf("Processed %d chunks\n", r.Chunks)
		} else {
			color.Red("Error: %s", r.Message)
		}
	}
	if err == nil {
		// Same post-upload refresh the browser does, without the delay.
		if c.RefreshInfo(ctx) == nil {
			printStatus(c.View())
		}
	}
	return err
}

func printStatus(v frontend.View) {
	status := color.New(color.FgRed)
	if v.StatusConnected {
		status = color.New(color.FgGreen)
	}
	fmt.Print("Status:     ")
	status.Println(v.StatusText)
	fmt.Printf("Documents:  %s\n", v.DocCount)
	fmt.Printf("Collection: %s\n", v.CollectionName)
	fmt.Printf("State:      %s\n", v.CollectionStatus)
}

func printAnswer(s frontend.UIState) {
	if !s.AnswerVisible {
		return
	}
	if s.AskError != "" {
		color.Red("%s", s.AskError)
		return
	}

	bold := color.New(color.Bold)
	for _, line := range strings.Split(frontend.PlainAnswer(s.Answer), "\n") {
		if frontend.IsHeading(line) {
			bold.Println(line)
		} else {
			fmt.Println(line)
		}
	}

	fmt.Println()
	gray := color.New(color.FgHiBlack)
	if len(s.Context) == 0 {
		gray.Println(frontend.NoContext)
		return
	}
	for i, snippet := range s.Context {
		color.New(color.FgCyan).Printf("Context %d: ", i+1)
		gray.Println(frontend.TruncateSnippet(snippet))
	}
}

func printNotifications(s frontend.UIState) {
	for _, n := range s.Notifications {
		switch n.Severity {
		case frontend.SeverityError:
			color.New(color.FgRed).Fprintf(os.Stderr, "! %s\n", n.Message)
		case frontend.SeveritySuccess:
			color.New(color.FgGreen).Fprintf(os.Stderr, "✓ %s\n", n.Message)
		default:
			color.New(color.FgYellow).Fprintf(os.Stderr, "i %s\n", n.Message)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
