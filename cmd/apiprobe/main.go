package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/openapi"
	"github.com/PentesterFlow/APIProbe/internal/output"
	"github.com/PentesterFlow/APIProbe/internal/progress"
	"github.com/PentesterFlow/APIProbe/internal/server"
	"github.com/PentesterFlow/APIProbe/internal/shutdown"
	"github.com/PentesterFlow/APIProbe/internal/state"
	"github.com/PentesterFlow/APIProbe/pkg/prober"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Analyze flags
	endpoints       []string
	endpointsFile   string
	outputFile      string
	timeout         int
	delay           float64
	concurrency     int
	catalogName     string
	includePatterns []string
	excludePatterns []string
	headers         []string
	stateFile       string
	showProgress    bool
	stream          bool

	// OpenAPI flags
	swagger       bool
	swaggerOutput string
	format        string
	title         string
	description   string
	runID         string

	// Serve flags
	addr            string
	staticDir       string
	generateTimeout int
	analyzerBinary  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "apiprobe",
		Short: "APIProbe - HTTP API surface analyzer",
		Long: `APIProbe - Reverse-engineers the surface of an HTTP API.

Discovers endpoints from a path catalog, published API documents or an
explicit list, detects supported methods, profiles query parameters, infers
response schemas and emits an OpenAPI 3.0 document.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze [base-url]",
		Short: "Analyze an API",
		Long:  "Discover and analyze the endpoints of the API at base-url.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze,
	}

	// Swagger command
	swaggerCmd := &cobra.Command{
		Use:   "swagger [analysis.json]",
		Short: "Convert an analysis into an OpenAPI document",
		Long:  "Convert a saved analysis document, or an archived run, into an OpenAPI 3.0 document.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSwagger,
	}

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generation web service",
		Long:  "Serve POST /api/generate and GET /api/health plus the static UI.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	// Status command
	statusCmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show archived runs",
		Long:  "List the runs archived in a state file, or show one run in detail.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Analyze flags
	analyzeCmd.Flags().StringArrayVarP(&endpoints, "endpoints", "e", nil, "Endpoint path to analyze (repeatable); disables catalog discovery")
	analyzeCmd.Flags().StringVarP(&endpointsFile, "endpoints-file", "f", "", "File with one endpoint path per line")
	analyzeCmd.Flags().StringVarP(&outputFile, "output", "o", "analysis.json", "Analysis output file")
	analyzeCmd.Flags().IntVarP(&timeout, "timeout", "t", 10, "Request timeout in seconds")
	analyzeCmd.Flags().Float64VarP(&delay, "delay", "d", 0.1, "Delay between requests in seconds")
	analyzeCmd.Flags().IntVar(&concurrency, "concurrency", 1, "Endpoints analyzed in parallel")
	analyzeCmd.Flags().StringVar(&catalogName, "catalog", "minimal", "Parameter catalog (minimal, extensive)")
	analyzeCmd.Flags().StringArrayVar(&includePatterns, "include", nil, "Path globs to include")
	analyzeCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "Path globs to exclude")
	analyzeCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Header sent with every request (\"Name: value\")")
	analyzeCmd.Flags().StringVar(&stateFile, "state-file", "", "Archive the run to this file (.db, .json or .json.gz)")
	analyzeCmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress bar")
	analyzeCmd.Flags().BoolVar(&stream, "stream", false, "Stream endpoint analyses to stdout as NDJSON")
	analyzeCmd.Flags().BoolVar(&swagger, "swagger", false, "Also write an OpenAPI document")
	analyzeCmd.Flags().StringVar(&swaggerOutput, "swagger-output", "swagger.json", "OpenAPI output file")
	analyzeCmd.Flags().StringVar(&format, "format", "", "OpenAPI format (json, yaml); default from the output extension")
	analyzeCmd.Flags().StringVar(&title, "title", "", "OpenAPI title")
	analyzeCmd.Flags().StringVar(&description, "description", "", "OpenAPI description")

	// Swagger flags
	swaggerCmd.Flags().StringVarP(&swaggerOutput, "output", "o", "swagger.json", "OpenAPI output file")
	swaggerCmd.Flags().StringVar(&format, "format", "", "OpenAPI format (json, yaml); default from the output extension")
	swaggerCmd.Flags().StringVar(&title, "title", "", "OpenAPI title")
	swaggerCmd.Flags().StringVar(&description, "description", "", "OpenAPI description")
	swaggerCmd.Flags().StringVar(&stateFile, "state-file", "", "Read the analysis from this run archive")
	swaggerCmd.Flags().StringVar(&runID, "run", "", "Archived run ID (default: latest)")

	// Serve flags
	serveCmd.Flags().StringVar(&addr, "addr", ":5000", "Listen address")
	serveCmd.Flags().StringVar(&staticDir, "static-dir", "web/build", "Static UI directory")
	serveCmd.Flags().IntVar(&generateTimeout, "generate-timeout", 300, "Generation timeout in seconds")
	serveCmd.Flags().StringVar(&analyzerBinary, "analyzer", "", "Analyzer executable (default: this binary)")

	// Status flags
	statusCmd.Flags().StringVar(&stateFile, "state-file", "", "Run archive to read")
	statusCmd.MarkFlagRequired("state-file")

	// Add commands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(swaggerCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *logger.Logger {
	level := logger.InfoLevel
	if debug {
		level = logger.DebugLevel
	} else if !verbose {
		level = logger.WarnLevel
	}
	return logger.New(logger.Config{
		Level:  level,
		Pretty: true,
		Output: os.Stderr,
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	config := prober.DefaultConfig()

	// Load config file if provided; command-line flags take precedence
	if configFile != "" {
		fileConfig, err := prober.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	if len(args) > 0 {
		config.Target = args[0]
	}
	if config.Target == "" {
		return fmt.Errorf("base URL is required")
	}

	flags := cmd.Flags()
	if flags.Changed("endpoints") {
		config.Endpoints = endpoints
	}
	if flags.Changed("endpoints-file") {
		config.EndpointsFile = endpointsFile
	}
	if flags.Changed("output") || configFile == "" {
		config.Output.Path = outputFile
	}
	if flags.Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("delay") {
		config.Delay = time.Duration(delay * float64(time.Second))
	}
	if flags.Changed("concurrency") {
		config.Concurrency = concurrency
	}
	if flags.Changed("catalog") {
		config.ParameterCatalog = catalogName
	}
	if flags.Changed("state-file") {
		config.State.File = stateFile
	}
	if flags.Changed("swagger") {
		config.Output.Swagger = swagger
	}
	if flags.Changed("swagger-output") || configFile == "" {
		config.Output.SwaggerPath = swaggerOutput
	}
	if flags.Changed("format") {
		config.Output.SwaggerFormat = format
	} else if flags.Changed("swagger-output") || configFile == "" {
		config.Output.SwaggerFormat = string(output.FormatFromPath(config.Output.SwaggerPath))
	}
	if flags.Changed("title") {
		config.Output.Title = title
	}
	if flags.Changed("description") {
		config.Output.Description = description
	}
	config.Scope.Include = append(config.Scope.Include, includePatterns...)
	config.Scope.Exclude = append(config.Scope.Exclude, excludePatterns...)

	if len(headers) > 0 && config.Headers == nil {
		config.Headers = make(map[string]string, len(headers))
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		config.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	config.Verbose = verbose || config.Verbose
	config.Debug = debug || config.Debug

	log := newLogger()
	opts := []prober.Option{
		prober.WithConfig(config),
		prober.WithLogger(log),
	}

	// Progress bar and verbose logs share stderr
	enableProgress := showProgress && !config.Verbose && !config.Debug
	if enableProgress {
		opts = append(opts, prober.WithProgress(progress.New()))
	}
	if stream {
		opts = append(opts, prober.WithStream(os.Stdout))
	}

	p, err := prober.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create prober: %w", err)
	}

	// Setup signal handling
	handler := shutdown.New(shutdown.Config{Logger: log})
	handler.Register("prober", func(context.Context) error { return p.Close() })
	defer handler.Shutdown()

	ctx := handler.Context()
	startTime := time.Now()
	doc, runErr := p.Run(ctx)
	duration := time.Since(startTime)

	if doc == nil {
		return runErr
	}
	if ctx.Err() != nil {
		fmt.Fprintf(os.Stderr, "\nInterrupted, saving partial results...\n")
	}

	if err := p.Write(doc); err != nil {
		return err
	}

	if !stream {
		progress.PrintSummary(os.Stdout, doc, duration)
		fmt.Printf("Analysis saved to %s\n", config.Output.Path)
		if config.Output.Swagger {
			fmt.Printf("OpenAPI document saved to %s\n", config.Output.SwaggerPath)
		}
	}

	if runErr != nil {
		return fmt.Errorf("analysis failed: %w", runErr)
	}
	return nil
}

func runSwagger(cmd *cobra.Command, args []string) error {
	var doc *prober.Document
	var err error

	switch {
	case len(args) > 0:
		doc, err = prober.LoadDocument(args[0])
	case stateFile != "":
		doc, err = loadArchivedDocument(stateFile, runID)
	default:
		err = fmt.Errorf("an analysis file or --state-file is required")
	}
	if err != nil {
		return err
	}

	f := output.FormatFromPath(swaggerOutput)
	if format != "" {
		if f, err = output.ParseFormat(format); err != nil {
			return err
		}
	}

	spec := openapi.NewEmitter(openapi.Options{Title: title, Description: description}).Emit(doc)

	if err := output.WriteFile(swaggerOutput, spec, output.Config{Format: f, Pretty: true}); err != nil {
		return fmt.Errorf("failed to write OpenAPI document: %w", err)
	}
	fmt.Printf("OpenAPI document saved to %s\n", swaggerOutput)
	return nil
}

func loadArchivedDocument(path, id string) (*prober.Document, error) {
	store, err := state.OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer store.Close()

	if id == "" {
		runs, err := store.List()
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("no runs archived in %s", path)
		}
		id = runs[0].ID
	}

	run, err := store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	if len(run.Document) == 0 {
		return nil, fmt.Errorf("run %s has no analysis document", id)
	}
	return prober.ParseDocument(run.Document)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	if !verbose && !debug {
		log.SetLevel(logger.InfoLevel)
	}

	srv := server.New(server.Config{
		Addr:            addr,
		StaticDir:       staticDir,
		GenerateTimeout: time.Duration(generateTimeout) * time.Second,
		Binary:          analyzerBinary,
	}, server.WithLogger(log))

	handler := shutdown.New(shutdown.Config{Logger: log})
	handler.RegisterServer("http", srv)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Printf("APIProbe service listening on %s\n", addr)

	select {
	case err := <-errCh:
		handler.Shutdown()
		return err
	case <-handler.Context().Done():
		result := handler.Shutdown()
		if result.HasErrors() {
			return fmt.Errorf("shutdown finished with %d errors", len(result.Errors))
		}
		return <-errCh
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := state.OpenStore(stateFile)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer store.Close()

	if len(args) > 0 {
		run, err := store.Get(args[0])
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", args[0], err)
		}
		printRun(run)
		return nil
	}

	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("No runs archived in %s\n", stateFile)
		return nil
	}

	fmt.Printf("%-36s  %-19s  %-8s  %9s  %-8s  %s\n", "RUN", "STARTED", "MODE", "ENDPOINTS", "RATE", "TARGET")
	for _, run := range runs {
		fmt.Printf("%-36s  %-19s  %-8s  %9d  %-8s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Mode,
			run.Stats.EndpointsDiscovered,
			run.DiscoveryRate,
			run.Target,
		)
	}
	return nil
}

func printRun(run *state.RunRecord) {
	fmt.Println()
	fmt.Printf("Run:                 %s\n", run.ID)
	fmt.Printf("Target:              %s\n", run.Target)
	fmt.Printf("Mode:                %s\n", run.Mode)
	fmt.Printf("Started:             %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("Duration:            %v\n", run.Duration().Round(time.Millisecond))
	fmt.Printf("Endpoints Discovered:%d\n", run.Stats.EndpointsDiscovered)
	fmt.Printf("Endpoints Analyzed:  %d (%d failed)\n", run.Stats.EndpointsAnalyzed, run.Stats.EndpointsFailed)
	fmt.Printf("Parameters Profiled: %d\n", run.Stats.ParametersProfiled)
	fmt.Printf("Requests:            %d\n", run.Stats.Requests)
	if run.DiscoveryRate != "" {
		fmt.Printf("Discovery Rate:      %s\n", run.DiscoveryRate)
	}
	if run.Error != "" {
		fmt.Printf("Error:               %s\n", run.Error)
	}
	fmt.Println()
}
