package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Collections an import can target.
const (
	CollectionAssets      = "assets"
	CollectionCalibration = "calibration"
)

// ImportRequest describes one import.
type ImportRequest struct {
	reconcile.ImportOptions
	// DryRun computes the result without saving it.
	DryRun bool
	Actor  string
}

type importFunc func(*registry.Document, *reconcile.Workbook, reconcile.ImportOptions) (reconcile.ImportResult, error)

// ImportAssets reconciles the asset sheet of wb into the registry.
func (s *Service) ImportAssets(ctx context.Context, wb *reconcile.Workbook, req ImportRequest) (reconcile.ImportResult, error) {
	return s.runImport(ctx, CollectionAssets, wb, req, reconcile.ImportAssets)
}

// ImportCalibration reconciles the calibration plan sheets of wb into the
// registry.
func (s *Service) ImportCalibration(ctx context.Context, wb *reconcile.Workbook, req ImportRequest) (reconcile.ImportResult, error) {
	return s.runImport(ctx, CollectionCalibration, wb, req, reconcile.ImportCalibration)
}

func (s *Service) runImport(ctx context.Context, collection string, wb *reconcile.Workbook, req ImportRequest, fn importFunc) (reconcile.ImportResult, error) {
	if req.Now.IsZero() {
		req.Now = s.now()
	}

	var result reconcile.ImportResult
	apply := func(doc *registry.Document) error {
		r, err := fn(doc, wb, req.ImportOptions)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	if req.DryRun {
		doc, err := s.view(ctx)
		if err != nil {
			return reconcile.ImportResult{}, err
		}
		if err := apply(doc); err != nil {
			return reconcile.ImportResult{}, err
		}
		return result, nil
	}

	message := fmt.Sprintf("import %s from %s", collection, req.SourceFile)
	if err := s.mutate(ctx, req.Actor, message, apply); err != nil {
		return reconcile.ImportResult{}, err
	}

	s.metrics.ObserveImport(collection, string(result.Mode), result.Created, result.Updated, result.Skipped)
	s.logger.Info("import applied",
		"collection", collection,
		"mode", result.Mode,
		"source", req.SourceFile,
		"imported", result.Imported,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped)
	return result, nil
}

// ImportFile reads a workbook from path and imports it into collection,
// recording name as the source file. An empty name uses the base name of
// path. It backs queued import jobs.
func (s *Service) ImportFile(ctx context.Context, collection, path, name, policy, sheet string) (reconcile.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return reconcile.ImportResult{}, fmt.Errorf("%w: failed to open %s: %w", registry.ErrUnreadableSource, path, err)
	}
	defer f.Close()

	if name == "" {
		name = filepath.Base(path)
	}
	wb, err := reconcile.ReadWorkbook(f, name)
	if err != nil {
		return reconcile.ImportResult{}, err
	}

	req := ImportRequest{
		ImportOptions: reconcile.ImportOptions{
			Policy:     reconcile.ParsePolicy(policy, ""),
			Sheet:      sheet,
			SourceFile: name,
		},
		Actor: "import-job",
	}
	switch collection {
	case CollectionAssets:
		return s.ImportAssets(ctx, wb, req)
	case CollectionCalibration:
		return s.ImportCalibration(ctx, wb, req)
	default:
		return reconcile.ImportResult{}, fmt.Errorf("%w: unknown import collection %q", registry.ErrInvalidInput, collection)
	}
}
