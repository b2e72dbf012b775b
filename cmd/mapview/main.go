package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mapview/internal/api"
	"github.com/joeblew999/plat-mapview/internal/logging"
	"github.com/joeblew999/plat-mapview/internal/server"
	"github.com/joeblew999/plat-mapview/internal/service"
)

var log = logging.NewLogger("main")

// Options defines all CLI flags and env vars for the viewer server.
// Flags: --host, --port, --data-dir, --web-dir, --catalog-file, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory holding layerdef.json, tiles/ and duckdb/" default:".data"`
	WebDir      string `doc:"Optional web/ directory with static/ and templates/fragments/" default:""`
	CatalogFile string `doc:"Map description file (JSON or YAML), relative to data-dir" default:"layerdef.json"`
	GeocoderURL string `doc:"geocodr query endpoint, empty disables place search" default:""`
	GeocoderKey string `doc:"geocodr API key" default:""`
	SessionTTL  string `doc:"Idle time after which viewer sessions expire, as a Go duration" default:"30m"`
	LogLevel    string `doc:"Log level (debug, info, warn, error)" default:"info"`
}

func newServer(opts *Options) (*server.Server, error) {
	if err := logging.SetLevel(opts.LogLevel); err != nil {
		return nil, err
	}
	ttl, err := time.ParseDuration(opts.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("session-ttl: %w", err)
	}
	return server.New(server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		DataDir:     opts.DataDir,
		WebDir:      opts.WebDir,
		CatalogFile: opts.CatalogFile,
		GeocoderURL: opts.GeocoderURL,
		GeocoderKey: opts.GeocoderKey,
		SessionTTL:  ttl,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var (
			srv    *server.Server
			httpd  *http.Server
			cancel context.CancelFunc
		)

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts)
			if err != nil {
				log.Fatalf("Startup failed: %v", err)
			}
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			srv.Start(ctx)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-mapview server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpd = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if cancel != nil {
				cancel()
			}
			if httpd != nil {
				ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = httpd.Shutdown(ctx)
			}
			if srv != nil {
				_ = srv.Close()
			}
		})
	})

	cli.Root().Use = "mapview"
	cli.Root().Short = "Map viewer backend with per-session layer trees"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(srv.OpenAPI())
			} else {
				output, err = json.MarshalIndent(srv.OpenAPI(), "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// catalog subcommand: print the layer trees a new session would see
	catalogCmd := &cobra.Command{
		Use:   "catalog [labels...]",
		Short: "Print the base layer and overlay trees, optionally with preselected labels",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, err := service.NewCatalogService(opts.DataDir, opts.CatalogFile, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
				os.Exit(1)
			}
			var labels []string
			for _, a := range args {
				for _, l := range strings.Split(a, ",") {
					if l = strings.TrimSpace(l); l != "" {
						labels = append(labels, l)
					}
				}
			}
			store := service.NewSessionStore(cat, nil, nil, 0)
			if err := store.Create(labels).Fprint(os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	cli.Root().AddCommand(catalogCmd)

	cli.Run()
}
