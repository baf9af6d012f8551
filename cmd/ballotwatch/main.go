package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skip2/go-qrcode"

	"github.com/ballotwatch/ballotwatch/internal/app"
	"github.com/ballotwatch/ballotwatch/internal/ballot"
	"github.com/ballotwatch/ballotwatch/internal/browser"
	"github.com/ballotwatch/ballotwatch/internal/countdown"
	apperrors "github.com/ballotwatch/ballotwatch/internal/errors"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/notify"
)

// ANSI escape codes
const (
	clearLine = "\r\033[2K"
	reset     = "\033[0m"
	yellow    = "\033[33m"
	red       = "\033[31m"
	green     = "\033[32m"
	cyan      = "\033[36m"
	bold      = "\033[1m"
)

var version = "dev"

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	backend := flag.String("backend", cfg.BackendURL, "Backend base URL")
	electionID := flag.String("election", cfg.ElectionID, "Election id to watch")
	dbPath := flag.String("db", cfg.DBPath, "SQLite state path")
	logLevel := flag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	voterID := flag.String("voter", cfg.VoterID, "Voter id to log in as")
	admin := flag.Bool("admin", cfg.Admin, "Request an admin session")
	showQR := flag.Bool("qr", false, "Print a QR code for the web ballot and exit")
	openBallot := flag.Bool("open", false, "Open the web ballot in the browser and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ballotwatch - election countdown, ballot, and notification client

Usage:
  ballotwatch [options]

Options:
  -backend str   Backend base URL (default %q)
  -election str  Election id to watch (default %q)
  -db str        SQLite state path (default %q)
  -loglevel str  Log level: debug, info, warn, error (default %q)
  -voter str     Voter id to log in as
  -admin         Request an admin session
  -qr            Print a QR code for the web ballot and exit
  -open          Open the web ballot in the browser and exit
  -version       Show version and exit

Environment (BALLOTWATCH_ prefix, .env file honored):
  BALLOTWATCH_BACKEND_URL, BALLOTWATCH_ELECTION_ID, BALLOTWATCH_DB_PATH,
  BALLOTWATCH_LOG_LEVEL, BALLOTWATCH_VOTER_ID, BALLOTWATCH_ADMIN

Interactive commands:
  c              List approved candidates
  v <key>        Select a candidate and confirm the vote
  n              Show the notification feed
  q              Quit

`, cfg.BackendURL, cfg.ElectionID, cfg.DBPath, cfg.LogLevel)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("ballotwatch %s\n", version)
		os.Exit(0)
	}

	cfg.BackendURL = *backend
	cfg.ElectionID = *electionID
	cfg.DBPath = *dbPath
	cfg.LogLevel = *logLevel
	cfg.VoterID = *voterID
	cfg.Admin = *admin

	if *showQR {
		if err := printBallotQR(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "qr error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *openBallot {
		if err := browser.Open(ballotURL(cfg)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to open browser: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// ballotURL is the platform's web ballot for the configured election
func ballotURL(cfg app.Config) string {
	return strings.TrimRight(cfg.BackendURL, "/") + "/vote/" + cfg.ElectionID
}

// printBallotQR renders the web ballot URL as a terminal QR code
func printBallotQR(cfg app.Config) error {
	url := ballotURL(cfg)
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n%s\n", qr.ToSmallString(false), url)
	return nil
}

func run(cfg app.Config, log logger.Logger) error {
	a, err := app.New(log, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Init(ctx); err != nil {
		return err
	}

	if !a.Guard().IsLoggedIn() {
		if cfg.VoterID == "" {
			return apperrors.Auth("no session; pass -voter to log in")
		}
		if err := a.Login(ctx, cfg.VoterID, cfg.Admin); err != nil {
			return err
		}
		fmt.Printf("%sLogged in as %s%s\n", green, cfg.VoterID, reset)
	}

	// Redirect target for a forced logout: stop everything
	a.Guard().Subscribe(func() {
		fmt.Printf("\n%sSession ended, logging out%s\n", red, reset)
		stop()
	})

	window, err := a.RefreshWindow(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%sElection %s%s  %s → %s\n", bold, window.ID, reset,
		window.StartTime.Format("2006-01-02 15:04"), window.EndTime.Format("2006-01-02 15:04"))

	timer, err := a.StartCountdown(ctx)
	if err != nil {
		return err
	}
	feed := a.StartFeed(ctx)

	workflow, err := a.StartBallot(ctx)
	if err != nil {
		return err
	}

	go displayLoop(ctx, timer, feed)
	go commandLoop(ctx, a, workflow, feed, stop)

	<-ctx.Done()
	fmt.Println()
	return nil
}

// displayLoop renders countdown ticks and announces live notifications
func displayLoop(ctx context.Context, timer *countdown.Timer, feed *notify.Feed) {
	for {
		select {
		case snapshot := <-timer.Ticks():
			if snapshot.Ended {
				fmt.Printf("%s%sThe election has ended%s\n> ", clearLine, yellow, reset)
				continue
			}
			fmt.Printf("%s%s%dd %02d:%02d:%02d remaining%s  [%d] > ", clearLine, cyan,
				snapshot.Days, snapshot.Hours, snapshot.Minutes, snapshot.Seconds, reset, feed.Badge())
		case <-feed.Updates():
			events := feed.Events()
			if len(events) > 0 {
				fmt.Printf("%s%s%s %s%s\n> ", clearLine, yellow,
					notify.Icon(events[0].Kind), notify.Headline(events[0]), reset)
			}
		case <-ctx.Done():
			return
		}
	}
}

// commandLoop reads interactive commands from stdin
func commandLoop(ctx context.Context, a *app.App, workflow *ballot.Workflow, feed *notify.Feed, quit func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q":
			quit()
			return
		case "c":
			listCandidates(ctx, a)
		case "n":
			showFeed(feed)
		case "v":
			if len(fields) < 2 {
				fmt.Println("usage: v <candidate-key>")
				continue
			}
			castVote(ctx, workflow, scanner, fields[1])
		default:
			fmt.Println("commands: c (candidates), v <key> (vote), n (notifications), q (quit)")
		}
	}
}

func listCandidates(ctx context.Context, a *app.App) {
	candidates, err := a.API().ApprovedCandidates(ctx, a.Window().ID)
	if err != nil {
		fmt.Printf("%sfailed to fetch candidates: %v%s\n", red, err, reset)
		return
	}
	for _, c := range candidates {
		line := fmt.Sprintf("  %s%-10s%s %s", bold, c.CandidateKey, reset, c.DisplayName)
		if c.Party != "" {
			line += " (" + c.Party + ")"
		}
		fmt.Println(line)
		if c.Motto != "" {
			fmt.Printf("             %q\n", c.Motto)
		}
	}
}

func showFeed(feed *notify.Feed) {
	events := feed.Events()
	if len(events) == 0 {
		fmt.Println("  no notifications")
		return
	}
	for _, e := range events {
		fmt.Printf("  %s %s  %s\n", notify.Icon(e.Kind), e.CreatedAt.Format("15:04:05"), notify.Headline(e))
	}
}

// castVote walks the selection, confirmation, and submission steps. A
// declined confirmation leaves the selection held, so a later vote
// command resumes from it instead of re-selecting.
func castVote(ctx context.Context, workflow *ballot.Workflow, scanner *bufio.Scanner, key string) {
	if workflow.Phase() == ballot.PhaseSelected {
		if held := workflow.Selected(); held != nil && held.CandidateKey != key {
			fmt.Printf("%s%s is already selected; confirm that vote or quit%s\n",
				yellow, held.DisplayName, reset)
			return
		}
	} else if err := workflow.Select(key); err != nil {
		reportBallotError(err)
		return
	}
	if err := workflow.OpenConfirm(); err != nil {
		reportBallotError(err)
		return
	}

	selected := workflow.Selected()
	fmt.Printf("%sConfirm vote for %s?%s This cannot be undone. [y/N] ", bold, selected.DisplayName, reset)
	if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
		workflow.Cancel()
		fmt.Println("cancelled")
		return
	}

	if err := workflow.Confirm(ctx); err != nil {
		reportBallotError(err)
		if failure := workflow.Failure(); failure != nil && failure.Class.Retryable() {
			workflow.Retry()
			fmt.Println("you may try again")
		}
		return
	}
	fmt.Printf("%sVote recorded%s\n", green, reset)
}

func reportBallotError(err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		fmt.Printf("%s%s%s\n", red, appErr.Message, reset)
		return
	}
	fmt.Printf("%s%v%s\n", red, err, reset)
}
