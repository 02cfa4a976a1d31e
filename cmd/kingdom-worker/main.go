// Package main is the detached worker process spawned by
// internal/worker.Spawn: it runs exactly one council invocation to
// completion against a job file, then exits. All three standard
// streams are redirected to /dev/null by the spawning process; this
// binary never reads stdin or writes to a terminal.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jbohnslav/kingdom/internal/common/logger"
	"github.com/jbohnslav/kingdom/internal/worker"
)

func main() {
	jobPath := flag.String("job", "", "path to the job file written by the spawning process")
	flag.Parse()

	log := logger.Default()
	defer log.Sync()

	if *jobPath == "" {
		fmt.Fprintln(os.Stderr, "kingdom-worker: -job is required")
		os.Exit(2)
	}

	job, err := worker.ReadJobFile(*jobPath)
	if err != nil {
		log.Error("failed to read job file", zap.String("path", *jobPath), zap.Error(err))
		os.Exit(1)
	}
	os.Remove(*jobPath)

	log = log.With(zap.String("thread_id", job.ThreadID), zap.String("phase", job.Phase))
	log.Info("worker starting")

	if err := worker.RunJob(job); err != nil {
		log.Error("worker job failed", zap.Error(err))
		os.Exit(1)
	}

	log.Info("worker finished")
}
