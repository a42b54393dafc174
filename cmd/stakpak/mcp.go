package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stakpak/agent-core/internal/config"
	"github.com/stakpak/agent-core/internal/logging"
	"github.com/stakpak/agent-core/internal/scheduler"
	"github.com/stakpak/agent-core/internal/schedulestore"
	"github.com/stakpak/agent-core/internal/transport"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Manage the agent-core MCP server",
}

var (
	disableMCPMTLS   bool
	enableSlackTools bool
	agentAddr        string
)

var mcpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the MCP server and autopilot scheduler",
	RunE:  runMCPServer,
}

func init() {
	mcpServerCmd.Flags().BoolVar(&disableMCPMTLS, "disable-mcp-mtls", false, "serve plaintext instead of mTLS")
	mcpServerCmd.Flags().BoolVar(&enableSlackTools, "enable-slack-tools", false, "expose Slack notification tools")
	mcpServerCmd.Flags().StringVar(&agentAddr, "agent-addr", "127.0.0.1:50151", "address of the agent runtime receiving dispatched runs")
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if disableMCPMTLS {
		cfg.DisableMCPMTLS = true
	}
	if enableSlackTools {
		cfg.EnableSlackTools = true
	}

	mode := transport.ResolveMode(cfg.ClientCAPEM, cfg.DisableMCPMTLS)
	identity, err := transport.BuildIdentity(mode, cfg.ClientCAPEM)
	if err != nil {
		return fmt.Errorf("failed to build mTLS identity: %w", err)
	}
	transport.PrintBanner(os.Stdout, identity)

	port, err := transport.ResolvePort("STAKPAK_MCP_PORT", cfg.MCPPort)
	if err != nil {
		return err
	}
	addr := transport.BindAddress(port)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer lis.Close()
	fmt.Fprintln(os.Stdout, transport.ServerURL(identity, addr, "/"))

	var serverOpts []grpc.ServerOption
	if identity.Credentials != nil {
		serverOpts = append(serverOpts, grpc.Creds(identity.Credentials))
	}
	grpcServer := grpc.NewServer(serverOpts...)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logging.Error("mcp server stopped serving: %v", err)
		}
	}()
	defer grpcServer.GracefulStop()

	db, err := schedulestore.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open schedule store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate schedule store: %w", err)
	}
	store := schedulestore.New(db.Conn())

	dispatchClient, closeClient, err := dialAgent(agentAddr, mode)
	if err != nil {
		return fmt.Errorf("failed to dial agent runtime at %s: %w", agentAddr, err)
	}
	defer closeClient()
	dispatcher := transport.NewAgentDispatcher(dispatchClient)

	loc, err := schedulerLocation(cfg.SchedulerLocation)
	if err != nil {
		return err
	}
	sched := scheduler.New(store, dispatcher, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	logging.Info("mcp server listening on %s (mTLS mode: %s)", addr, mode)

	<-ctx.Done()
	logging.Info("shutting down: draining in-flight runs")
	sched.Stop()
	return nil
}

// dialAgent dials the agent runtime that receives dispatched runs. In
// sandbox/self-signed mode the dial trusts any server certificate since
// the agent endpoint is operator-configured out of band; plaintext mode
// dials without TLS.
func dialAgent(addr string, mode transport.Mode) (*transport.DispatchClient, func(), error) {
	var creds credentials.TransportCredentials
	if mode == transport.ModePlaintext {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})
	}

	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, nil, err
	}
	return transport.NewDispatchClient(cc), func() { cc.Close() }, nil
}
