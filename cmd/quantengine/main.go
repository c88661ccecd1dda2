package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/quantcore/lfq-engine/internal/config"
	"github.com/quantcore/lfq-engine/internal/diagnostics"
	"github.com/quantcore/lfq-engine/internal/engine"
	"github.com/quantcore/lfq-engine/internal/reader"
	"github.com/quantcore/lfq-engine/internal/store"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// ms1Reader and idLoader are the two external collaborators spec.md keeps
// out of scope: the engine ships their interfaces (internal/reader) and
// test mocks, but no production file-format implementation. A real
// deployment links one in at build time; until then the engine degrades to
// a diagnostics-only surface, mirroring the coinjoin engine's "API-only
// mode" guard when the Bitcoin RPC client is unavailable.
var (
	ms1Reader reader.MS1Reader
	idLoader  reader.IdentificationLoader
)

func main() {
	log.Println("Starting quantengine (label-free MS1 quantification engine)...")

	cfgPath := getEnvOrDefault("QENGINE_CONFIG_FILE", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("FATAL: failed to load config from %s: %v", cfgPath, err)
	}

	hub := diagnostics.NewHub()
	go hub.Run()

	var diagStore *store.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		diagStore, err = store.Connect(context.Background(), dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without diagnostics persistence: %v", err)
		} else {
			defer diagStore.Close()
			if err := diagStore.InitSchema(context.Background()); err != nil {
				log.Printf("Warning: diagnostics schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set, diagnostics persistence disabled")
	}

	r := diagnostics.SetupRouter(hub)

	if ms1Reader != nil && idLoader != nil {
		e := engine.New(ms1Reader, idLoader, cfg)
		e.OnProgress = hub.Report
		if diagStore != nil {
			report := diagStore.ReportFunc(context.Background())
			onProgress := e.OnProgress
			e.OnProgress = func(d models.RunDiagnostics) {
				onProgress(d)
				report(d)
			}
		}

		manifestPath := getEnvOrDefault("QENGINE_RUN_MANIFEST", "runs.json")
		runs, err := loadRunManifest(manifestPath)
		if err != nil {
			log.Printf("Warning: failed to load run manifest %s, engine will not run: %v", manifestPath, err)
		} else {
			go func() {
				results, err := e.Run(context.Background(), runs)
				if err != nil {
					log.Printf("engine run failed: %v", err)
					return
				}
				total := 0
				for _, peaks := range results {
					total += len(peaks)
				}
				log.Printf("engine run complete: %d runs, %d peaks total", len(results), total)
			}()
		}
	} else {
		log.Println("WARNING: no MS1 reader/identification loader wired — running in diagnostics-only mode")
	}

	port := getEnvOrDefault("PORT", "8080")
	log.Printf("quantengine diagnostics surface listening on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadRunManifest reads the ordered set of runs to process from a JSON file
// of models.RunDescriptor values.
func loadRunManifest(path string) ([]models.RunDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var runs []models.RunDescriptor
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
