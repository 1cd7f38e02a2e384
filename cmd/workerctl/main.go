package main

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gasopt/optimizer/config"
	"github.com/gasopt/optimizer/internal/database"
	"github.com/gasopt/optimizer/internal/model"
	"github.com/gasopt/optimizer/internal/worker"
)

var (
	dryRun         = flag.Bool("dry-run", true, "dry run mode, don't actually mutate records or delete files")
	artifactGrace  = flag.Int("artifact-grace-minutes", 10, "minutes a build directory can sit before it's considered stale")
	sweepOrphans   = flag.Bool("sweep-orphans", true, "mark jobs stuck in processing as failed")
	sweepArtifacts = flag.Bool("sweep-artifacts", true, "remove stale artifact build directories")
)

// workerctl is a maintenance CLI for operating the worker out-of-band: it
// applies the same processing-job recovery rule JobStore.Recover() runs at
// startup (spec.md §4.7), and sweeps stale artifact directories
// (ArtifactGC.Sweep), without requiring a worker restart.
func main() {
	flag.Parse()

	log.Println("Starting workerctl maintenance sweep")
	log.Printf("Mode: dry-run=%v", *dryRun)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewWorkerDB(&cfg.Worker)
	if err != nil {
		log.Fatalf("Failed to connect worker database: %v", err)
	}

	orphans := 0
	if *sweepOrphans {
		orphans, err = sweepOrphanedJobs(db, *dryRun)
		if err != nil {
			log.Fatalf("Failed to sweep orphaned jobs: %v", err)
		}
	}

	artifactDir := cfg.Worker.ArtifactDir
	if artifactDir == "" {
		artifactDir = "artifacts"
	}

	removedArtifacts := 0
	if *sweepArtifacts {
		grace := time.Duration(*artifactGrace) * time.Minute
		if *dryRun {
			removedArtifacts = countStaleArtifacts(artifactDir, grace)
		} else {
			gc := worker.NewArtifactGC(artifactDir, grace, time.Hour)
			removedArtifacts = gc.Sweep()
		}
	}

	log.Println(strings.Repeat("=", 60))
	log.Println("workerctl summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Orphaned processing jobs marked failed: %d", orphans)
	log.Printf("Stale artifact directories removed: %d", removedArtifacts)
	if *dryRun {
		log.Println("DRY RUN MODE - nothing was actually changed")
		log.Println("Run with -dry-run=false to apply")
	}
}

// sweepOrphanedJobs applies spec.md §4.7's startup-recovery rule outside of
// process startup: any job still "processing" is not actually running
// (this process never launched its subprocess), so it is reported failed.
func sweepOrphanedJobs(db *gorm.DB, dryRun bool) (int, error) {
	var jobs []*model.WorkerJob
	if err := db.Where("status = ?", model.WorkerProcessing).Find(&jobs).Error; err != nil {
		return 0, err
	}

	for _, job := range jobs {
		log.Printf("  - job %s stuck in processing since %s", job.ID, job.UpdatedAt.Format(time.RFC3339))
		if dryRun {
			continue
		}
		job.Status = model.WorkerFailed
		job.Error = "Worker restarted during processing."
		job.UpdatedAt = time.Now()
		if err := db.Save(job).Error; err != nil {
			return 0, err
		}
	}

	return len(jobs), nil
}

// countStaleArtifacts reports how many build directories Sweep would
// remove, without touching the filesystem, for dry-run reporting.
func countStaleArtifacts(dir string, grace time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > grace {
			count++
		}
	}
	return count
}
