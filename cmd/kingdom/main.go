// Package main is the kingdom CLI: a thin flag-based wrapper over
// kingdom.Core. It exists to exercise every Core operation from a
// terminal and from the end-to-end tests in this repo, not to be a rich
// user interface — formatting and colorized output belong to whatever
// external collaborator shells out to this binary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jbohnslav/kingdom"
	"github.com/jbohnslav/kingdom/internal/common/logger"
	"github.com/jbohnslav/kingdom/internal/thread"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

// Exit codes per spec.md §6.
const (
	exitOK           = 0
	exitUserError    = 1
	exitAgentFailure = 2
	exitTimeout      = 124
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var projectRoot, branch string
	root := flag.NewFlagSet("kingdom", flag.ContinueOnError)
	root.StringVar(&projectRoot, "project", ".", "project root containing .kingdom/")
	root.StringVar(&branch, "branch", "main", "branch whose threads to operate on")

	if err := root.Parse(args); err != nil {
		return exitUserError
	}
	if root.NArg() == 0 {
		usage()
		return exitUserError
	}
	cmd := root.Arg(0)
	rest := root.Args()[1:]

	core, err := kingdom.NewCore(projectRoot, branch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kingdom: load config: %v\n", err)
		return exitUserError
	}
	log := logger.Default()
	defer log.Sync()

	switch cmd {
	case "ask":
		return cmdAsk(core, rest)
	case "watch":
		return cmdWatch(core, rest)
	case "status":
		return cmdStatus(core, rest)
	case "retry":
		return cmdRetry(core, rest)
	case "show":
		return cmdShow(core, rest)
	case "list":
		return cmdList(core)
	case "reset-session":
		return cmdResetSession(core, rest)
	case "-h", "--help", "help":
		usage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "kingdom: unknown command %q\n", cmd)
		usage()
		return exitUserError
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: kingdom [-project DIR] [-branch NAME] <command> [args]

commands:
  ask <prompt>             start or continue a thread
  watch <thread-id>        tail a thread until its current turn completes
  status [thread-id|all]   show each member's derived state
  retry <thread-id>        re-run members missing a reply in the current turn
  show <thread-id>         print every message in a thread
  list                     list threads on this branch
  reset-session <agent>    clear an agent's saved session token`)
}

func cmdAsk(core *kingdom.Core, args []string) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	members := fs.String("members", "", "comma-separated member names (default: config council.members)")
	threadID := fs.String("thread", "", "continue an existing thread instead of starting one")
	timeout := fs.Duration("timeout", 0, "override the configured council timeout")
	background := fs.Bool("background", false, "run detached and return immediately")
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "kingdom ask: a prompt is required")
		return exitUserError
	}
	prompt := strings.Join(fs.Args(), " ")

	var memberList []string
	if *members != "" {
		memberList = strings.Split(*members, ",")
	}

	id, err := core.Ask(kingdom.AskRequest{
		Prompt:     prompt,
		Members:    memberList,
		ThreadID:   *threadID,
		Timeout:    *timeout,
		Background: *background,
	})
	if id != "" {
		fmt.Println(id)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "kingdom ask: %v\n", err)
		return exitAgentFailure
	}
	return exitOK
}

func cmdWatch(core *kingdom.Core, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 0, "give up waiting after this long")
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "kingdom watch: a thread id is required")
		return exitUserError
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	outcome, err := core.Watch(ctx, kingdom.WatchRequest{
		ThreadID: fs.Arg(0),
		Timeout:  *timeout,
		OnMessage: func(m thread.Message) {
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format(time.RFC3339), m.From, m.Body)
		},
		OnFrame: func(member string, f streamframe.Frame) {
			if f.Text != "" {
				fmt.Printf("%s| %s\n", member, f.Text)
			}
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "kingdom watch: %v\n", err)
		return exitUserError
	}
	switch outcome {
	case "timeout":
		return exitTimeout
	case "complete":
		return exitOK
	default:
		return exitOK
	}
}

func cmdStatus(core *kingdom.Core, args []string) int {
	if len(args) == 0 || args[0] == "all" {
		all, err := core.StatusAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "kingdom status: %v\n", err)
			return exitUserError
		}
		return printJSON(all)
	}

	st, err := core.Status(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kingdom status: %v\n", err)
		return exitUserError
	}
	return printJSON(st)
}

func cmdRetry(core *kingdom.Core, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "kingdom retry: a thread id is required")
		return exitUserError
	}
	responses, err := core.Retry(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kingdom retry: %v\n", err)
		return exitAgentFailure
	}
	for _, r := range responses {
		fmt.Printf("%s: %s\n", r.Name, r.Outcome)
		if r.Error != nil {
			return exitAgentFailure
		}
	}
	return exitOK
}

func cmdShow(core *kingdom.Core, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "kingdom show: a thread id is required")
		return exitUserError
	}
	messages, err := core.Show(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kingdom show: %v\n", err)
		return exitUserError
	}
	for _, m := range messages {
		fmt.Printf("%04d %-12s %s\n", m.Seq, m.From, m.Body)
	}
	return exitOK
}

func cmdList(core *kingdom.Core) int {
	threads, err := core.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kingdom list: %v\n", err)
		return exitUserError
	}
	return printJSON(threads)
}

func cmdResetSession(core *kingdom.Core, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "kingdom reset-session: an agent name is required")
		return exitUserError
	}
	if err := core.ResetSession(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "kingdom reset-session: %v\n", err)
		return exitUserError
	}
	return exitOK
}

func printJSON(v interface{}) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "kingdom: encode output: %v\n", err)
		return exitUserError
	}
	return exitOK
}
