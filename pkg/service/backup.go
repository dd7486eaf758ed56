package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// BackupStats reports the size of a restored document.
type BackupStats struct {
	Assets      int `json:"assets"`
	Calibration int `json:"calibration"`
}

// ExportBackup returns the persisted document bytes. A store that has never
// been written yields a fresh document.
func (s *Service) ExportBackup(ctx context.Context) ([]byte, error) {
	data, err := s.store.Raw(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read backup: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return registry.Encode(registry.NewDocument())
	}
	return data, nil
}

// RestoreBackup replaces the whole registry with the document in data after
// normalizing it. Anything but a JSON object fails with ErrCorruptDocument.
func (s *Service) RestoreBackup(ctx context.Context, data []byte, actor string) (BackupStats, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return BackupStats{}, fmt.Errorf("%w: backup is not a JSON object", registry.ErrCorruptDocument)
	}
	doc, err := registry.Decode(trimmed)
	if err != nil {
		return BackupStats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(ctx, doc, actor, "restore backup"); err != nil {
		return BackupStats{}, err
	}
	return BackupStats{Assets: len(doc.Assets), Calibration: len(doc.Calibration.Items)}, nil
}
