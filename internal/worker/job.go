package worker

import (
	"encoding/json"
	"fmt"
	"os"
)

// Job is everything a detached kingdom-worker process needs to run one
// council invocation to completion. It is serialized to a temp file so
// the parent process never has to pass a large prompt through argv,
// which has a platform-dependent length limit.
type Job struct {
	ProjectRoot string            `json:"project_root"`
	Branch      string            `json:"branch"`
	ThreadID    string            `json:"thread_id"`
	Phase       string            `json:"phase"`
	Members     []string          `json:"members"`
	Prompt      string            `json:"prompt"`
	ResumeTokens map[string]string `json:"resume_tokens,omitempty"`
}

// WriteJobFile serializes job to a fresh temp file and returns its path.
// The worker process deletes the file once it has loaded it.
func WriteJobFile(job Job) (string, error) {
	f, err := os.CreateTemp("", "kingdom-worker-job-*.json")
	if err != nil {
		return "", fmt.Errorf("worker: create job file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(job); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("worker: encode job: %w", err)
	}
	return f.Name(), nil
}

// ReadJobFile decodes the job file at path. The caller is responsible
// for removing it afterward.
func ReadJobFile(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("worker: read job file: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("worker: decode job file: %w", err)
	}
	return job, nil
}
