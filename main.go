package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"trends-go/internal/app"
	"trends-go/internal/config"
	"trends-go/pkg/logger"
	"trends-go/pkg/runlog"
	"trends-go/pkg/task"
	"trends-go/pkg/terms"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("CRITICAL ERROR: application panic recovered: %v\n", r)
			os.Exit(1)
		}
	}()

	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", getEnvOrDefault("TRENDS_CONFIG", ""), "Configuration file path (env: TRENDS_CONFIG)")
		taskName    = flag.String("task", getEnvOrDefault("TRENDS_TASK", ""), "Task to run: daily-interest or hourly-rising (env: TRENDS_TASK)")
		termList    = flag.String("terms", getEnvOrDefault("TRENDS_TERMS", ""), "Comma-separated terms, defaults to the active terms (env: TRENDS_TERMS)")
		timeframe   = flag.String("timeframe", "", "Timeframe override, e.g. \"today 3-m\"")
		geo         = flag.String("geo", "", "Region override, e.g. BR")
		importTerms = flag.String("import-terms", "", "YAML terms file to import before running")
		timeoutMin  = flag.Int("timeout", getEnvIntOrDefault("TRENDS_RUN_TIMEOUT", 120), "Run timeout in minutes (env: TRENDS_RUN_TIMEOUT)")
		debug       = flag.Bool("debug", getEnvBoolOrDefault("DEBUG", false), "Enable debug logging (env: DEBUG)")
		help        = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return 0
	}
	if *taskName == "" && *importTerms == "" {
		fmt.Println("ERROR: nothing to do, pass -task and/or -import-terms.")
		fmt.Println("")
		printUsage()
		return 1
	}

	var kind task.Kind
	if *taskName != "" {
		var err error
		if kind, err = task.ParseKind(*taskName); err != nil {
			fmt.Printf("ERROR: %v\n\n", err)
			printUsage()
			return 1
		}
	}

	cfg, err := config.NewManager().Load(*configPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return 1
	}
	if *debug {
		cfg.Logger.Level = "debug"
	}
	// Runs started here are executed in-process, never by the scheduler.
	cfg.Scheduler.Enabled = false
	log := logger.Init(cfg.Logger).WithField("component", "cli")

	services, err := app.New(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to build services")
		return 1
	}
	defer func() {
		if err := services.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to close services cleanly")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutMin)*time.Minute)
	defer cancel()

	if *importTerms != "" {
		n, err := services.Terms.Import(ctx, *importTerms)
		if err != nil {
			log.WithError(err).WithField("file", *importTerms).Error("Terms import failed")
			return 1
		}
		fmt.Printf("Imported %d terms from %s\n", n, *importTerms)
	}

	if kind == "" {
		return 0
	}

	startTime := time.Now()
	acc, out, err := services.Tasks.RunSync(ctx, kind, task.Request{
		Terms:     terms.Split(*termList),
		Timeframe: *timeframe,
		Geo:       *geo,
	})
	if err != nil {
		log.WithError(err).WithField("task", string(kind)).Error("Run failed to start")
		return 1
	}

	fmt.Printf("\n=== %s ===\n", kind)
	fmt.Printf("Status: %s\n", acc.Status)
	if acc.RunID == "" {
		fmt.Printf("Message: %s\n", acc.Message)
		return 0
	}
	fmt.Printf("Run ID: %s\n", acc.RunID)
	fmt.Printf("Outcome: %s\n", out.Status)
	fmt.Printf("Processed: %d\n", out.Processed)
	fmt.Printf("Duration: %s\n", time.Since(startTime).Round(time.Millisecond))
	if out.Error != "" {
		fmt.Printf("Error: %s\n", out.Error)
	}

	if out.Status == runlog.StatusFailed {
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println("trends-go collection runner")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./trends-go -task <daily-interest|hourly-rising> [OPTIONS]")
	fmt.Println("    ./trends-go -import-terms terms.yaml")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	fmt.Println("    -config string         Configuration file (env: TRENDS_CONFIG)")
	fmt.Println("    -task string           daily-interest or hourly-rising (env: TRENDS_TASK)")
	fmt.Println("    -terms string          Comma-separated terms (env: TRENDS_TERMS)")
	fmt.Println("    -timeframe string      Timeframe override")
	fmt.Println("    -geo string            Region override")
	fmt.Println("    -import-terms string   YAML terms file to import")
	fmt.Println("    -timeout int           Run timeout in minutes (default: 120, env: TRENDS_RUN_TIMEOUT)")
	fmt.Println("    -debug                 Enable debug logging (env: DEBUG)")
	fmt.Println("    -help                  Show this help message")
	fmt.Println("")
	fmt.Println("Every configuration key can also be set as TRENDS_<SECTION>_<KEY>,")
	fmt.Println("for example TRENDS_STORAGE_PATH=/var/lib/trends/trends.db.")
	fmt.Println("")
	fmt.Println("EXAMPLES:")
	fmt.Println("    ./trends-go -import-terms config/terms.example.yaml -task daily-interest")
	fmt.Println("    ./trends-go -task hourly-rising -terms \"bolsa,dólar\" -geo PT")
}
