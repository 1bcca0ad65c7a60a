package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/secureblog/apiserver/internal/storage"
)

// Archiver uploads the security log file to object storage so the
// dashboard's history survives log rotation on the application host.
type Archiver struct {
	storage *storage.Storage
	logPath string
	prefix  string
}

// NewArchiver constructs an Archiver for the given log file and object
// key prefix.
func NewArchiver(st *storage.Storage, logPath, prefix string) *Archiver {
	return &Archiver{storage: st, logPath: logPath, prefix: prefix}
}

// Archive uploads the current contents of the security log as a new
// timestamped object and returns its key. The log file itself is left
// in place.
func (a *Archiver) Archive(ctx context.Context) (string, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		return "", fmt.Errorf("open security log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat security log: %w", err)
	}

	if err := a.storage.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure archive bucket: %w", err)
	}

	key := fmt.Sprintf("%s/%s.log", a.prefix, time.Now().UTC().Format("20060102T150405Z"))
	if err := a.storage.Put(ctx, key, f, info.Size(), "text/plain"); err != nil {
		return "", fmt.Errorf("upload security log: %w", err)
	}
	return key, nil
}
