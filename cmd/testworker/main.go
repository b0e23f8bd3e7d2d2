package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexustest/engine/internal/telemetry"
	"github.com/nexustest/engine/internal/transport"
	"github.com/nexustest/engine/internal/workerhost"
)

const workerVersion = "1.0.0"

// Command line: <agent-id> <agency-url> --pid=<controller-pid>
// [--trace=<level>] [--debug-agent] [--work=<dir>]. The first two
// arguments are positional and always come before any flag, so they are
// split off before flag.Parse ever sees the remainder.
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <agent-id> <agency-url> --pid=<controller-pid> [--trace=<level>] [--debug-agent] [--work=<dir>]\n", os.Args[0])
		os.Exit(2)
	}

	agentID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatalf("invalid agent id %q: %v", os.Args[1], err)
	}
	agencyURL := os.Args[2]

	fs := flag.NewFlagSet("testworker", flag.ExitOnError)
	controllerPID := fs.Int("pid", 0, "controller process id")
	traceLevel := fs.Int("trace", int(telemetry.LevelOff), "internal trace level")
	debugAgent := fs.Bool("debug-agent", false, "pause for debugger attach before serving")
	workDir := fs.String("work", "", "working directory for the worker process")
	if err := fs.Parse(os.Args[3:]); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	if *workDir != "" {
		if err := os.Chdir(*workDir); err != nil {
			log.Fatalf("changing to work directory %s: %v", *workDir, err)
		}
	}
	if *debugAgent {
		fmt.Fprintf(os.Stderr, "testworker %s: agent %s waiting for debugger attach (pid %d)\n", workerVersion, agentID, os.Getpid())
		select {} // the controller kills this process if no debugger ever attaches
	}

	tel, err := telemetry.New(telemetry.Level(*traceLevel), nil)
	if err != nil {
		log.Fatalf("initializing telemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	tel.Log.Info("worker starting",
		zap.String("agent_id", agentID.String()),
		zap.Int("controller_pid", *controllerPID),
	)

	nc, err := dial(agencyURL)
	if err != nil {
		log.Fatalf("dialing agency at %s: %v", agencyURL, err)
	}
	conn := transport.NewConn(nc)
	defer conn.Close()

	if err := conn.SendCommand(transport.Command{Name: "AgentStarted", Args: []string{agentID.String()}}); err != nil {
		log.Fatalf("sending handshake: %v", err)
	}
	if _, result, err := conn.ReadConversation(); err != nil || !result.OK {
		log.Fatalf("handshake rejected: result=%+v err=%v", result, err)
	}

	host := workerhost.New(conn, tel.Log)
	if err := host.Serve(); err != nil {
		tel.Log.Error("dispatch loop ended with error", zap.Error(err))
		os.Exit(1)
	}
}

func dial(agencyURL string) (net.Conn, error) {
	addr := strings.TrimPrefix(agencyURL, "tcp://")
	return net.Dial("tcp", addr)
}
