package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-map/internal/format"
	"github.com/joeblew999/plat-map/internal/mapstate"
	"github.com/joeblew999/plat-map/internal/server"
)

// Options defines all CLI flags and env vars for the map server.
// Flags: --host, --port, --data-dir, --web-dir, --fixture, --upstream, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir   string `doc:"Directory for the database and layers.yaml" default:".data"`
	WebDir    string `doc:"Path to web/ directory" default:"web"`
	Fixture   string `doc:"GeoJSON file served on the /api/web data endpoints"`
	Upstream  string `doc:"Base URL overlay data is fetched from"`
	RPS       int    `doc:"Upstream requests per second, 0 for unlimited" default:"0"`
	Debounce  string `doc:"Delay before overlays follow a move" default:"250ms"`
	ExportURL string `doc:"Image export service URL"`
	Debug     bool   `doc:"Enable debug logging"`
}

func newLogger(opts *Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newServer(opts *Options) (*server.Server, error) {
	debounce, err := time.ParseDuration(opts.Debounce)
	if err != nil {
		return nil, fmt.Errorf("invalid debounce: %w", err)
	}
	logger := newLogger(opts)
	slog.SetDefault(logger)

	return server.New(server.Config{
		Host:              opts.Host,
		Port:              strconv.Itoa(opts.Port),
		DataDir:           opts.DataDir,
		WebDir:            opts.WebDir,
		Fixture:           opts.Fixture,
		Upstream:          opts.Upstream,
		RequestsPerSecond: float64(opts.RPS),
		Debounce:          debounce,
		ExportURL:         opts.ExportURL,
		Logger:            logger,
	})
}

func fatal(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		httpServer := &http.Server{Addr: fmt.Sprintf("%s:%d", opts.Host, opts.Port)}

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts)
			if err != nil {
				fatal("Error starting server: %v", err)
			}
			httpServer.Handler = srv

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-map API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			httpServer.Close()
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "mapview"
	cli.Root().Short = "Map view state, short links and viewport synchronized overlays"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Root().AddCommand(shortLinkCmd(), hashCmd())

	cli.Run()
}

// shortLinkCmd encodes a location into a short link code or decodes one.
func shortLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shortlink",
		Short: "Encode or decode short link codes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <lon> <lat> <zoom>",
		Short: "Print the short link code of a location",
		Args:  cobra.ExactArgs(3),
		// Negative coordinates would otherwise parse as shorthand flags.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lon, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid lon: %w", err)
			}
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid lat: %w", err)
			}
			zoom, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid zoom: %w", err)
			}
			s := mapstate.State{Lon: lon, Lat: lat, Zoom: float64(zoom)}.Normalized()
			if !s.Valid() {
				return errors.New("location out of range")
			}
			fmt.Fprintln(cmd.OutOrStdout(), mapstate.EncodeShortLink(s.Lon, s.Lat, zoom))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:                "decode <code>",
		Short:              "Print the location of a short link code",
		Args:               cobra.ExactArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lon, lat, zoom, err := mapstate.DecodeShortLink(args[0])
			if err != nil {
				return err
			}
			s := mapstate.State{Lon: lon, Lat: lat, Zoom: float64(zoom)}
			return printState(cmd, s)
		},
	})

	return cmd
}

// hashCmd decodes a #map= fragment.
func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <url-or-fragment>",
		Short: "Decode a #map=zoom/lat/lon fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := mapstate.Decode(args[0])
			if !ok {
				return errors.New("no valid #map= state found")
			}
			return printState(cmd, s)
		},
	}
}

func printState(cmd *cobra.Command, s mapstate.State) error {
	out := cmd.OutOrStdout()
	lon, lat := format.LonLat(s.Lon, s.Lat, s.Zoom)
	fmt.Fprintf(out, "lon:       %s\n", lon)
	fmt.Fprintf(out, "lat:       %s\n", lat)
	fmt.Fprintf(out, "zoom:      %s\n", format.Zoom(s.Zoom))
	if s.Layers != "" {
		fmt.Fprintf(out, "layers:    %s\n", s.Layers)
	}
	fmt.Fprintf(out, "position:  %s\n", format.DMS(s.Lat, s.Lon))
	fmt.Fprintf(out, "hash:      %s\n", mapstate.Encode(s))
	fmt.Fprintf(out, "shortlink: %s\n", mapstate.ShortLinkPath(s, nil))
	return nil
}
