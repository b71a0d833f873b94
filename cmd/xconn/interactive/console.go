// Package interactive implements the xconn command console.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/xconn/xconn-go/pkg/account"
	"github.com/xconn/xconn-go/pkg/network"
	"github.com/xconn/xconn-go/pkg/notify"
	"github.com/xconn/xconn-go/pkg/resolver"
	"github.com/xconn/xconn-go/pkg/service"
)

// Service is the part of service.Service the console drives.
type Service interface {
	Accounts() []account.ID
	Status(id account.ID) (service.Status, error)
	Connect(id account.ID) error
	Interrupt(id account.ID) error
	SetEnabled(id account.ID, enabled bool) error
	Errors(id account.ID) []account.ErrorRecord
	ClearErrors(id account.ID)
	Notifications() *notify.Bus
	SetNetworkMode(m network.Mode)
	NetworkMode() network.Mode
	NetworkAvailable() bool
	SetResolver(strategy resolver.Strategy) error
	Resolver() resolver.Strategy
}

var errNoAccount = errors.New("account required")

// Console handles interactive mode for xconn.
type Console struct {
	svc Service
	rl  *readline.Instance
	out io.Writer
}

// New creates a console with a readline prompt.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xconn> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that coordinates with the readline input.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the readline input. Use
// it for log output so the prompt is redrawn.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop for svc. It returns when the
// user quits (calling cancel) or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, svc Service) {
	defer c.rl.Close()
	c.svc = svc

	sub := svc.Notifications().Subscribe(notify.DefaultBuffer)
	defer sub.Close()
	go c.showNotifications(ctx, sub)

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.Execute(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

func (c *Console) showNotifications(ctx context.Context, sub *notify.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-sub.C():
			if !ok {
				return
			}
			fmt.Fprintf(c.out, "\n[!] %s (%s)\n    'enable %s' to retry\n",
				rec.String(), rec.Time.Format("15:04:05"), rec.Account)
		}
	}
}

// Execute runs one command line. It returns true when the user asked to
// quit.
func (c *Console) Execute(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "st":
		c.cmdStatus(args)
	case "start", "connect":
		c.cmdStart(args)
	case "interrupt", "int":
		c.withAccount(args, c.svc.Interrupt, "interrupted")
	case "enable":
		c.withAccount(args, func(id account.ID) error { return c.svc.SetEnabled(id, true) }, "enabled")
	case "disable":
		c.withAccount(args, func(id account.ID) error { return c.svc.SetEnabled(id, false) }, "disabled")
	case "errors", "e":
		c.cmdErrors(args)
	case "notifications", "n":
		c.cmdNotifications()
	case "dismiss":
		c.cmdDismiss(args)
	case "resolver":
		c.cmdResolver(args)
	case "network", "net":
		c.cmdNetwork(args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
xconn Commands:
  Accounts:
    status [account]       - Show account status
    start <account>|all    - Start a connection attempt now
    interrupt <account>    - Interrupt the running attempt
    enable <account>       - Enable an account (dismisses its notification)
    disable <account>      - Disable an account and disconnect it
    errors <account> [clear] - Show (or clear) recorded errors

  Notifications:
    notifications          - List pending error notifications
    dismiss <account>      - Dismiss a notification

  Settings:
    resolver [system|dnsclient] - Show or switch the DNS strategy
    network [auto|up|down]      - Show or force network availability

  General:
    help                   - Show this help
    quit                   - Exit

  The account may be omitted when only one is configured.`)
}

// account resolves the account argument.
func (c *Console) account(args []string) (account.ID, error) {
	if len(args) == 0 {
		ids := c.svc.Accounts()
		if len(ids) == 1 {
			return ids[0], nil
		}
		return "", errNoAccount
	}
	return account.ParseID(args[0])
}

func (c *Console) withAccount(args []string, fn func(account.ID) error, done string) {
	id, err := c.account(args)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if err := fn(id); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", id, done)
}

func (c *Console) cmdStatus(args []string) {
	ids := c.svc.Accounts()
	if len(args) > 0 {
		id, err := account.ParseID(args[0])
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		ids = []account.ID{id}
	}

	fmt.Fprintf(c.out, "\nNetwork: %s (%s)   Resolver: %s\n",
		availability(c.svc.NetworkAvailable()), c.svc.NetworkMode(), c.svc.Resolver())
	fmt.Fprintln(c.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(c.out, "%-28s %-8s %-14s %-9s %-22s %s\n",
		"ACCOUNT", "ENABLED", "STATE", "TASK", "LAST RESULT", "RETRIES")
	for _, id := range ids {
		st, err := c.svc.Status(id)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			continue
		}
		last := st.LastResult.String()
		if st.LastAttempt > 0 {
			last += " (" + st.LastAttempt.Round(time.Millisecond).String() + ")"
		}
		fmt.Fprintf(c.out, "%-28s %-8s %-14s %-9s %-22s %d\n",
			st.Account, yesNo(st.Enabled), st.State, st.Phase, last, st.Retries)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) cmdStart(args []string) {
	if len(args) == 1 && strings.EqualFold(args[0], "all") {
		for _, id := range c.svc.Accounts() {
			if err := c.svc.Connect(id); err != nil {
				fmt.Fprintf(c.out, "  %s: %v\n", id, err)
				continue
			}
			fmt.Fprintf(c.out, "  %s: attempt requested\n", id)
		}
		return
	}
	c.withAccount(args, c.svc.Connect, "attempt requested")
}

func (c *Console) cmdErrors(args []string) {
	id, err := c.account(args)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(args) > 1 && strings.EqualFold(args[1], "clear") {
		c.svc.ClearErrors(id)
		fmt.Fprintf(c.out, "Errors of %s cleared\n", id)
		return
	}

	errs := c.svc.Errors(id)
	if len(errs) == 0 {
		fmt.Fprintf(c.out, "No errors recorded for %s\n", id)
		return
	}
	fmt.Fprintf(c.out, "\nErrors of %s (%d):\n", id, len(errs))
	for _, rec := range errs {
		fmt.Fprintf(c.out, "  %s %s\n", rec.Time.Format("2006-01-02 15:04:05"), rec.Kind)
		for _, line := range strings.Split(rec.Message, "\n") {
			fmt.Fprintf(c.out, "      %s\n", line)
		}
	}
}

func (c *Console) cmdNotifications() {
	recs := c.svc.Notifications().Stickies()
	if len(recs) == 0 {
		fmt.Fprintln(c.out, "No notifications")
		return
	}
	for _, rec := range recs {
		fmt.Fprintf(c.out, "  [!] %s\n", rec.String())
	}
}

func (c *Console) cmdDismiss(args []string) {
	id, err := c.account(args)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if !c.svc.Notifications().RemoveSticky(id) {
		fmt.Fprintf(c.out, "No notification for %s\n", id)
		return
	}
	fmt.Fprintf(c.out, "Notification for %s dismissed\n", id)
}

func (c *Console) cmdResolver(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "Resolver: %s\n", c.svc.Resolver())
		return
	}
	strategy, err := resolver.ParseStrategy(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if err := c.svc.SetResolver(strategy); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Resolver: %s (applies to the next attempt)\n", strategy)
}

func (c *Console) cmdNetwork(args []string) {
	if len(args) > 0 {
		var mode network.Mode
		switch strings.ToLower(args[0]) {
		case "auto":
			mode = network.ModeAuto
		case "up", "on":
			mode = network.ModeUp
		case "down", "off":
			mode = network.ModeDown
		default:
			fmt.Fprintln(c.out, "Usage: network [auto|up|down]")
			return
		}
		c.svc.SetNetworkMode(mode)
	}
	fmt.Fprintf(c.out, "Network: %s (%s)\n", availability(c.svc.NetworkAvailable()), c.svc.NetworkMode())
}

func availability(up bool) string {
	if up {
		return "available"
	}
	return "unavailable"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var _ Service = (*service.Service)(nil)
