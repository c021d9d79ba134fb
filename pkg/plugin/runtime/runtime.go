package runtime

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// Runtime is a handle to the shared embedded-runtime process. It is started
// once, at most, for the whole engine process (spec.md §4.D): every
// invocation is serialized through mu because the upstream runtime is not
// re-entrant across threads.
type Runtime struct {
	mu     sync.Mutex
	cc     *grpc.ClientConn
	client *client
	cmd    *exec.Cmd
	log    hclog.Logger
}

// LaunchConfig configures the external embedded-runtime host process.
type LaunchConfig struct {
	// Command launches the runtime host, e.g. "java" with classpath args
	// assembled from every discovered plugin's jar directory.
	Command string
	Args    []string
	// Addr is the loopback address the host listens on once started, e.g.
	// "127.0.0.1:7551".
	Addr string
	// StartupTimeout bounds how long Start waits for the host to accept
	// connections before giving up.
	StartupTimeout time.Duration
}

// Start launches the embedded runtime host process (if Command is set) and
// dials it over loopback gRPC using the JSON codec registered in codec.go.
func Start(ctx context.Context, cfg LaunchConfig) (*Runtime, error) {
	r := &Runtime{
		log: hclog.New(&hclog.LoggerOptions{Name: "embedded-runtime", Level: hclog.Info}),
	}

	if cfg.Command != "" {
		cmd := exec.CommandContext(context.Background(), cfg.Command, cfg.Args...)
		cmd.Stderr = r.log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Warn})
		cmd.Stdout = r.log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("runtime: starting embedded runtime host: %w", err)
		}
		r.log.Info("launched embedded runtime host", "command", cfg.Command, "pid", cmd.Process.Pid)
		r.cmd = cmd
	}

	dialCtx, cancel := context.WithTimeout(ctx, nonZero(cfg.StartupTimeout, 10*time.Second))
	defer cancel()

	cc, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("runtime: dialing embedded runtime at %s: %w", cfg.Addr, err)
	}
	cc.Connect()
	for {
		s := cc.GetState()
		if s == connectivity.Ready {
			break
		}
		if !cc.WaitForStateChange(dialCtx, s) {
			_ = cc.Close()
			if r.cmd != nil && r.cmd.Process != nil {
				_ = r.cmd.Process.Kill()
			}
			return nil, fmt.Errorf("runtime: embedded runtime at %s not ready within startup timeout: %w", cfg.Addr, dialCtx.Err())
		}
	}

	r.cc = cc
	r.client = newClient(cc)
	return r, nil
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Invoke runs one plugin invocation against the embedded runtime, holding
// the process-wide mutex for the duration of the call.
func (r *Runtime) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Invoke(ctx, req)
}

// Close releases the gRPC connection and, if this Runtime launched the host
// process itself, signals it to terminate.
func (r *Runtime) Close() error {
	if r.cmd != nil && r.cmd.Process != nil {
		r.log.Info("terminating embedded runtime host", "pid", r.cmd.Process.Pid)
		_ = r.cmd.Process.Kill()
	}
	if r.cc != nil {
		return r.cc.Close()
	}
	return nil
}
