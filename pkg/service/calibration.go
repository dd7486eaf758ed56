package service

import (
	"context"
	"fmt"

	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// CalibrationPlan is the calibration collection with its import metadata.
type CalibrationPlan struct {
	Meta  map[string]any     `json:"meta"`
	Items []*registry.Record `json:"items"`
}

// ListCalibration returns the calibration plan.
func (s *Service) ListCalibration(ctx context.Context) (CalibrationPlan, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return CalibrationPlan{}, err
	}
	return CalibrationPlan{Meta: doc.Calibration.Meta, Items: doc.Calibration.Items}, nil
}

var errIncompleteCalibration = fmt.Errorf("%w: a calibration item needs a code, a name or a serial number", registry.ErrInvalidInput)

// CreateCalibration normalizes fields into a calibration item and appends it.
func (s *Service) CreateCalibration(ctx context.Context, fields *registry.Record, actor string) (*registry.Record, error) {
	item, ok := reconcile.NormalizeCalibrationRow(fields, "")
	if !ok {
		return nil, errIncompleteCalibration
	}
	err := s.mutate(ctx, actor, "create calibration item", func(doc *registry.Document) error {
		item.Set(registry.FieldID, registry.NewUniqueID(registry.CalibrationIDPrefix, doc.Calibration.Items))
		doc.Calibration.Items = append(doc.Calibration.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateCalibration merges updates into the item with id and normalizes the
// result again. The id never changes.
func (s *Service) UpdateCalibration(ctx context.Context, id string, updates *registry.Record, actor string) (*registry.Record, error) {
	var out *registry.Record
	err := s.mutate(ctx, actor, "update calibration item "+id, func(doc *registry.Document) error {
		i := doc.FindCalibration(id)
		if i < 0 {
			return fmt.Errorf("%w: calibration item %q", registry.ErrNotFound, id)
		}
		merged := doc.Calibration.Items[i].Clone()
		merged.Merge(updates)
		item, ok := reconcile.NormalizeCalibrationRow(merged, "")
		if !ok {
			return errIncompleteCalibration
		}
		item.Set(registry.FieldID, doc.Calibration.Items[i].ID())
		doc.Calibration.Items[i] = item
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCalibration removes the item with id and returns the reference of
// its attached result file, if any.
func (s *Service) DeleteCalibration(ctx context.Context, id, actor string) (string, error) {
	var ref string
	err := s.mutate(ctx, actor, "delete calibration item "+id, func(doc *registry.Document) error {
		i := doc.FindCalibration(id)
		if i < 0 {
			return fmt.Errorf("%w: calibration item %q", registry.ErrNotFound, id)
		}
		ref = doc.Calibration.Items[i].Text(registry.FieldCalibrationFile)
		items := doc.Calibration.Items
		doc.Calibration.Items = append(items[:i:i], items[i+1:]...)
		return nil
	})
	return ref, err
}

// AttachCalibrationFile records a result file on the item and returns the
// reference it replaced.
func (s *Service) AttachCalibrationFile(ctx context.Context, id, ref, name, actor string) (string, error) {
	return s.setCalibrationFile(ctx, id, ref, name, actor, "attach result file to "+id)
}

// ClearCalibrationFile removes the result file from the item and returns
// the reference it had.
func (s *Service) ClearCalibrationFile(ctx context.Context, id, actor string) (string, error) {
	return s.setCalibrationFile(ctx, id, "", "", actor, "remove result file from "+id)
}

func (s *Service) setCalibrationFile(ctx context.Context, id, ref, name, actor, message string) (string, error) {
	var previous string
	err := s.mutate(ctx, actor, message, func(doc *registry.Document) error {
		i := doc.FindCalibration(id)
		if i < 0 {
			return fmt.Errorf("%w: calibration item %q", registry.ErrNotFound, id)
		}
		item := doc.Calibration.Items[i]
		previous = item.Text(registry.FieldCalibrationFile)
		item.Set(registry.FieldCalibrationFile, ref)
		item.Set(registry.FieldCalibrationFileName, name)
		return nil
	})
	return previous, err
}
