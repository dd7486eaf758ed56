package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ImportRequest describes a spreadsheet waiting to be imported.
// SourceName is the file name recorded on the import and defaults to the
// base name of SourcePath. CleanupPath, when set, is removed once the job
// finishes.
type ImportRequest struct {
	Kind        string
	SourcePath  string
	SourceName  string
	CleanupPath string
	Policy      string
	Sheet       string
	RequestedBy string
}

// NewImportJob builds a queued job for req. The idempotency key is derived
// from the kind and the file content, so enqueueing the same file twice
// while the first job is pending yields one job.
func NewImportJob(req ImportRequest) (*ImportJob, error) {
	sum, err := fileDigest(req.SourcePath)
	if err != nil {
		return nil, err
	}
	key := req.Kind + ":" + sum
	name := req.SourceName
	if name == "" {
		name = filepath.Base(req.SourcePath)
	}
	requestedBy := req.RequestedBy
	if requestedBy == "" {
		requestedBy = "system"
	}
	return &ImportJob{
		ID:             uuid.NewString(),
		Kind:           req.Kind,
		Policy:         req.Policy,
		Sheet:          req.Sheet,
		SourcePath:     req.SourcePath,
		SourceName:     name,
		CleanupPath:    req.CleanupPath,
		RequestedBy:    requestedBy,
		RequestedAt:    time.Now(),
		State:          JobStateQueued,
		IdempotencyKey: &key,
	}, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("jobs: failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("jobs: failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
