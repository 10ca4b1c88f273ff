package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kilupskalvis/minard/internal/store"
	"github.com/kilupskalvis/minard/internal/stream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live updates",
	Long: `Connect to the event stream and print changes as they arrive.

Without flags, follows the whole team. With --deployment, follows a single
deployment, which works without logging in.

Examples:
  minard-sync watch
  minard-sync watch --deployment 7 --sha 9f2c1a0
  minard-sync watch --metrics-addr :9090`,
	Args: cobra.NoArgs,
	Run:  runWatch,
}

var (
	watchDeployment  string
	watchSHA         string
	watchMetricsAddr string
)

func init() {
	watchCmd.Flags().StringVar(&teamFlag, "team", "", "Team ID (defaults to the configured team)")
	watchCmd.Flags().StringVar(&watchDeployment, "deployment", "", "Follow a single deployment")
	watchCmd.Flags().StringVar(&watchSHA, "sha", "", "Commit hash of the followed deployment")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := initContext()
	defer c.Close()

	var token string
	sess, _, err := c.Sessions.Current(time.Now())
	switch {
	case err == nil:
		c.Session = sess
		token = sess.Token
	case watchDeployment == "":
		exitError("%v (run 'minard-sync login')", err)
	}

	creds := stream.Credentials{Token: token}
	if watchDeployment != "" {
		creds.DeploymentID = watchDeployment
		creds.CommitHash = watchSHA
	} else {
		creds.TeamID = c.teamID(teamFlag)
	}

	logger := slog.Default()
	c.Store = store.NewDispatcher(logger)
	events := stream.New(c.Config.EventsURL(), c.Store, creds, stream.Options{
		ConnectingGrace: c.Config.ConnectingGraceDuration(),
		ReconnectDelay:  c.Config.ReconnectDelayDuration(),
		Logger:          logger,
	})

	if watchMetricsAddr != "" {
		srv := serveMetrics(watchMetricsAddr, logger)
		defer srv.Shutdown(context.Background())
	}

	r := newReporter(os.Stdout)
	unsubscribe := c.Store.Subscribe(r.report)
	defer unsubscribe()

	c.startEngine(ctx, token, events)
	if watchDeployment != "" {
		c.Engine.LoadDeployment(ctx, watchDeployment)
	} else {
		c.Engine.LoadAllProjects(ctx, creds.TeamID)
	}

	<-ctx.Done()
	fmt.Println()
	c.Engine.Teardown()
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

// reporter prints what changed between two cache states.
type reporter struct {
	mu sync.Mutex
	w  io.Writer
}

func newReporter(w io.Writer) *reporter {
	return &reporter{w: w}
}

func (r *reporter) report(prev, next *store.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev.Connection != next.Connection {
		fmt.Fprint(r.w, "stream ")
		connectionColor(next.Connection).Fprintln(r.w, next.Connection)
	}

	if prev.Projects != next.Projects {
		for _, id := range next.Projects.IDs() {
			p, ok := next.Projects.Entity(id)
			if !ok {
				continue
			}
			old, existed := prev.Projects.Entity(id)
			switch {
			case !existed:
				fmt.Fprintf(r.w, "project %s: %s\n", p.ID, p.Name)
			case old.Name != p.Name:
				fmt.Fprintf(r.w, "project %s renamed: %s -> %s\n", p.ID, old.Name, p.Name)
			}
		}
		for _, id := range prev.Projects.IDs() {
			if _, ok := next.Projects.Get(id); !ok {
				fmt.Fprintf(r.w, "project %s deleted\n", id)
			}
		}
	}

	if prev.Branches != next.Branches {
		for _, id := range next.Branches.IDs() {
			b, ok := next.Branches.Entity(id)
			if !ok {
				continue
			}
			if old, existed := prev.Branches.Entity(id); existed && old.LatestCommit != b.LatestCommit {
				fmt.Fprintf(r.w, "branch %s pushed: %s\n", b.Name, shortID(b.LatestCommit))
			}
		}
		for _, id := range prev.Branches.IDs() {
			if _, ok := next.Branches.Get(id); !ok {
				fmt.Fprintf(r.w, "branch %s deleted\n", id)
			}
		}
	}

	if prev.Deployments != next.Deployments {
		for _, id := range next.Deployments.IDs() {
			d, ok := next.Deployments.Entity(id)
			if !ok {
				continue
			}
			if old, existed := prev.Deployments.Entity(id); existed && old.Status != d.Status {
				fmt.Fprintf(r.w, "deployment %s ", d.ID)
				statusColor(d.Status).Fprintln(r.w, d.Status)
			}
		}
	}

	if prev.Comments != next.Comments {
		for _, id := range next.Comments.IDs() {
			if _, existed := prev.Comments.Get(id); existed {
				continue
			}
			if cm, ok := next.Comments.Entity(id); ok {
				fmt.Fprintf(r.w, "comment on deployment %s: %s\n", cm.Deployment, cm.Message)
			}
		}
	}
}
