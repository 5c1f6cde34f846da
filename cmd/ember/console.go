package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gookit/color"
)

// console reads operator commands from stdin until ctx is canceled or
// stdin closes, matching the Infrarust CLI's kick/list/configs/debug/
// tasks surface (a collaborator over pkg/supervisor and pkg/config,
// never new core behavior).
func (a *app) console(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	lineCh := make(chan string)
	go func() {
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
		close(lineCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lineCh:
			if !ok {
				return
			}
			a.dispatch(strings.Fields(line))
		}
	}
}

func (a *app) dispatch(fields []string) {
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "list":
		a.cmdList()
	case "configs":
		a.cmdConfigs()
	case "debug":
		a.cmdDebug()
	case "tasks":
		a.cmdTasks()
	case "kick":
		a.cmdKick(fields[1:])
	case "help":
		a.cmdHelp()
	case "exit", "quit":
		fmt.Println("use ctrl-c to stop the proxy")
	default:
		color.Red.Printf("unknown command %q, try \"help\"\n", fields[0])
	}
}

func (a *app) cmdHelp() {
	fmt.Println(`available commands:
  list              show every active server's session count
  configs           dump the routing table
  debug             print supervisor counters
  kick <user> [id]  report that players cannot be kicked by username (disconnects no one)
  tasks             print a note; no task names are listed
  help              show this message`)
}

func (a *app) cmdList() {
	for _, cfg := range a.services.All() {
		fmt.Printf("%-30s sessions=%d\n", cfg.ConfigID, a.supervisor.ActiveCount(cfg.ConfigID))
	}
}

func (a *app) cmdConfigs() {
	for _, cfg := range a.services.All() {
		fmt.Printf("%s: domains=%v addresses=%v mode=%s\n", cfg.ConfigID, cfg.Domains, cfg.Addresses, cfg.ProxyMode)
	}
}

func (a *app) cmdDebug() {
	fmt.Printf("players=%d configs=%d\n", a.supervisor.PlayerCount(), len(a.services.All()))
}

func (a *app) cmdTasks() {
	fmt.Println("background tasks are tracked internally; no named tasks are currently exposed for listing")
}

func (a *app) cmdKick(args []string) {
	if len(args) == 0 {
		color.Red.Println("usage: kick <username> [server-id]")
		return
	}
	color.Yellow.Printf("kick by username is not available: sessions are tracked by session id, not by player name; no player was disconnected\n")
}
