package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/veranemoloko/vidbatch/internal/client"
	cfgpkg "github.com/veranemoloko/vidbatch/internal/config"
	errpkg "github.com/veranemoloko/vidbatch/internal/errors"
	"github.com/veranemoloko/vidbatch/internal/progress"
	"github.com/veranemoloko/vidbatch/internal/storage"
)

const renderInterval = 250 * time.Millisecond

const (
	exitOK = iota
	exitJobFailed
	exitDisconnected
	exitUsage
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := cfgpkg.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return exitUsage
	}

	serverURL := flag.String("server", cfg.ServerURL, "Backend base URL")
	outputDir := flag.String("out", cfg.OutputDir, "Directory the finished download is saved to")
	noFetch := flag.Bool("no-fetch", false, "Only print the download link, do not fetch the file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: vidbatch [flags] <link>...")
		fmt.Fprintln(os.Stderr, "Links are read from standard input, one per line, when none are given.")
		fmt.Fprintln(os.Stderr, "\nExample:")
		fmt.Fprintln(os.Stderr, "  vidbatch https://youtu.be/dQw4w9WgXcQ https://www.youtube.com/watch?v=9bZkp7q19f0")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := cfgpkg.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	baseURL, err := url.Parse(*serverURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		fmt.Fprintf(os.Stderr, "invalid server URL %q\n", *serverURL)
		return exitUsage
	}

	rawText, err := readLinks(flag.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read links: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requestClient := &http.Client{Timeout: cfg.RequestTimeout}
	streamClient := &http.Client{}

	consumer := progress.NewConsumer(
		client.NewSSESource(baseURL, streamClient, logger),
		progress.NewViewModel(),
		logger,
		progress.Options{IdleTimeout: cfg.IdleTimeout},
	)
	session := progress.NewSession(client.NewSubmitter(baseURL, requestClient, logger), consumer, logger, progress.SessionOptions{})
	defer session.Close()

	sub, err := session.Start(ctx, rawText)
	if err != nil {
		fmt.Fprintln(os.Stderr, session.View().View().Error)
		logger.Debug("submission failed", "error", err)
		return startExitCode(err)
	}
	fmt.Printf("Job %s started\n", sub.Handle())

	outcome := render(ctx, sub, consumer.View(), os.Stdout)

	summary := summaryRow{job: string(sub.Handle()), videos: consumer.View().View().Videos}
	code := outcomeExitCode(outcome)

	switch outcome.Kind {
	case progress.OutcomeCompleted:
		summary.status = "completed"
		summary.link = resolveLink(baseURL, outcome.DownloadURL)
		if !*noFetch {
			output := storage.NewFileStorage(*outputDir)
			fetcher := client.NewArtifactFetcher(baseURL, streamClient, output, logger)
			name, size, err := fetcher.Fetch(ctx, outcome.DownloadURL)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to fetch download: %v\n", err)
				summary.status = "fetch failed"
				code = exitDisconnected
				break
			}
			summary.file = output.Path(name)
			summary.size = fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
		}
	case progress.OutcomeFailed:
		summary.status = "failed"
		fmt.Fprintln(os.Stderr, outcome.Message)
	case progress.OutcomeDisconnected:
		summary.status = "disconnected"
		fmt.Fprintf(os.Stderr, "lost progress stream: %v\n", outcome.Err)
	default:
		summary.status = "interrupted"
	}

	printSummary(os.Stdout, summary)
	return code
}

// startExitCode maps a failed submission to the process exit code.
func startExitCode(err error) int {
	switch {
	case errors.Is(err, errpkg.ErrEmptyInput):
		return exitUsage
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitJobFailed
	}
}

// outcomeExitCode maps a terminated subscription to the process exit code.
func outcomeExitCode(outcome progress.Outcome) int {
	switch outcome.Kind {
	case progress.OutcomeCompleted:
		return exitOK
	case progress.OutcomeFailed:
		return exitJobFailed
	case progress.OutcomeDisconnected:
		return exitDisconnected
	default:
		return exitInterrupted
	}
}

// readLinks joins args into a newline delimited batch, or reads the batch
// from r when no args are given.
func readLinks(args []string, r io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, "\n"), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// render prints the progress line whenever it changes until sub terminates.
func render(ctx context.Context, sub *progress.Subscription, vm *progress.ViewModel, w io.Writer) progress.Outcome {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	var lastVideos, lastLine string
	draw := func() {
		view := vm.View()
		if view.Videos != "" && view.Videos != lastVideos {
			fmt.Fprintf(w, "\nVideos: %s\n", view.Videos)
			lastVideos = view.Videos
			lastLine = ""
		}
		if line := view.ProgressText(); line != "" && line != lastLine {
			fmt.Fprintf(w, "\r%-60s", line)
			lastLine = line
		}
	}

	for {
		select {
		case <-sub.Done():
			draw()
			fmt.Fprintln(w)
			return sub.Outcome()
		case <-ctx.Done():
			sub.Close()
			fmt.Fprintln(w)
			return progress.Outcome{Kind: progress.OutcomeClosed, Err: ctx.Err()}
		case <-ticker.C:
			draw()
		}
	}
}

type summaryRow struct {
	job    string
	videos string
	status string
	link   string
	file   string
	size   string
}

func printSummary(w io.Writer, row summaryRow) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"Job", "Videos", "Status", "Download", "Saved To", "Size"})
	tbl.AppendRow(table.Row{
		row.job,
		fmt.Sprintf("%.40s", row.videos),
		row.status,
		row.link,
		row.file,
		row.size,
	})
	tbl.SetStyle(table.StyleLight)
	tbl.Render()
}

func resolveLink(baseURL *url.URL, link string) string {
	u, err := client.ResolveURL(baseURL, link)
	if err != nil {
		return link
	}
	return u.String()
}
