package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/maintenance"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
	"github.com/Kitoverdie1/uph-mem-system/pkg/sequence"
)

// Meta is the document metadata shown to clients.
type Meta struct {
	Meta                     map[string]any `json:"meta"`
	MaintenanceStatusChoices []string       `json:"maintenanceStatusChoices"`
}

// Meta returns the document metadata and the maintenance status labels.
func (s *Service) Meta(ctx context.Context) (Meta, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return Meta{}, err
	}
	return Meta{Meta: doc.Meta, MaintenanceStatusChoices: doc.MaintenanceStatusChoices}, nil
}

var searchFields = []string{
	registry.FieldCode,
	registry.FieldName,
	registry.FieldSerial,
	registry.FieldLocation,
}

// ListAssets returns assets whose code, name, serial number or location
// contains q, ignoring case. An empty q returns every asset.
func (s *Service) ListAssets(ctx context.Context, q string) ([]*registry.Record, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return doc.Assets, nil
	}
	out := make([]*registry.Record, 0)
	for _, a := range doc.Assets {
		for _, f := range searchFields {
			if strings.Contains(strings.ToLower(a.Text(f)), q) {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

// AssetByCode returns the first asset with the given code.
func (s *Service) AssetByCode(ctx context.Context, code string) (*registry.Record, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	i := doc.FindAssetByCode(code)
	if i < 0 {
		return nil, fmt.Errorf("%w: asset code %q", registry.ErrNotFound, code)
	}
	return doc.Assets[i], nil
}

// CreateAsset adds a new asset at the front of the list. The code is
// required and must be unused. The engine assigns the id.
func (s *Service) CreateAsset(ctx context.Context, fields *registry.Record, actor string) (*registry.Record, error) {
	asset := fields.Clone()
	code := asset.Code()
	if code == "" {
		return nil, fmt.Errorf("%w: asset code is required", registry.ErrInvalidInput)
	}

	err := s.mutate(ctx, actor, "create asset "+code, func(doc *registry.Document) error {
		if doc.FindAssetByCode(code) >= 0 {
			return fmt.Errorf("%w: %s", registry.ErrDuplicateCode, code)
		}
		asset.Set(registry.FieldID, registry.NewUniqueID(registry.AssetIDPrefix, doc.Assets))
		if asset.Text(registry.FieldMaintenance) == "" {
			asset.Set(registry.FieldMaintenance, doc.DefaultMaintenanceStatus())
		}
		if asset.Text(registry.FieldImage) == "" {
			asset.Set(registry.FieldImage, "")
		}
		doc.Assets = append([]*registry.Record{asset}, doc.Assets...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// UpdateAsset overwrites the given fields of the asset with id. The id never
// changes; a new code must not belong to another asset.
func (s *Service) UpdateAsset(ctx context.Context, id string, updates *registry.Record, actor string) (*registry.Record, error) {
	var out *registry.Record
	err := s.mutate(ctx, actor, "update asset "+id, func(doc *registry.Document) error {
		i := doc.FindAsset(id)
		if i < 0 {
			return fmt.Errorf("%w: asset %q", registry.ErrNotFound, id)
		}
		if err := checkCodeChange(doc, i, updates); err != nil {
			return err
		}
		out = doc.Assets[i].Clone()
		out.Merge(updates)
		out.Set(registry.FieldID, doc.Assets[i].ID())
		doc.Assets[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkCodeChange rejects an update that blanks the code of asset i or gives
// it a code already held by another asset.
func checkCodeChange(doc *registry.Document, i int, updates *registry.Record) error {
	if !updates.Has(registry.FieldCode) {
		return nil
	}
	code := updates.Code()
	if code == "" {
		return fmt.Errorf("%w: asset code is required", registry.ErrInvalidInput)
	}
	if j := doc.FindAssetByCode(code); j >= 0 && j != i {
		return fmt.Errorf("%w: %s", registry.ErrDuplicateCode, code)
	}
	return nil
}

// DeleteAsset removes the asset with id and returns it.
func (s *Service) DeleteAsset(ctx context.Context, id, actor string) (*registry.Record, error) {
	var removed *registry.Record
	err := s.mutate(ctx, actor, "delete asset "+id, func(doc *registry.Document) error {
		i := doc.FindAsset(id)
		if i < 0 {
			return fmt.Errorf("%w: asset %q", registry.ErrNotFound, id)
		}
		removed = doc.Assets[i]
		doc.Assets = append(doc.Assets[:i:i], doc.Assets[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// SetAssetImage stores ref as the asset image and returns the reference it
// replaced.
func (s *Service) SetAssetImage(ctx context.Context, id, ref, actor string) (string, error) {
	var previous string
	err := s.mutate(ctx, actor, "set image of asset "+id, func(doc *registry.Document) error {
		i := doc.FindAsset(id)
		if i < 0 {
			return fmt.Errorf("%w: asset %q", registry.ErrNotFound, id)
		}
		previous = doc.Assets[i].Text(registry.FieldImage)
		doc.Assets[i].Set(registry.FieldImage, ref)
		return nil
	})
	return previous, err
}

// UpdateAssetByCode applies a maintenance update through the repair
// workflow. Unprivileged actors can only report repairs.
func (s *Service) UpdateAssetByCode(ctx context.Context, code string, updates *registry.Record, actor maintenance.Actor) (*registry.Record, error) {
	var out *registry.Record
	err := s.mutate(ctx, actor.Name(), "maintenance update of "+code, func(doc *registry.Document) error {
		i := doc.FindAssetByCode(code)
		if i < 0 {
			return fmt.Errorf("%w: asset code %q", registry.ErrNotFound, code)
		}
		if actor.Privileged {
			if err := checkCodeChange(doc, i, updates); err != nil {
				return err
			}
		}
		before := doc.Assets[i].Text(registry.FieldMaintenance)
		rec, err := maintenance.New(doc.MaintenanceStatusChoices).Apply(doc.Assets[i], updates, actor, s.now())
		if err != nil {
			return err
		}
		if after := rec.Text(registry.FieldMaintenance); after != before {
			s.metrics.IncrementRepairTransition(string(maintenance.StateOf(after)))
		}
		doc.Assets[i] = rec
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmRepair moves a pending repair report of the asset in progress.
func (s *Service) ConfirmRepair(ctx context.Context, code string, actor maintenance.Actor) (*registry.Record, error) {
	return s.decide(ctx, code, actor, "confirm repair of "+code, func(w *maintenance.Workflow, rec *registry.Record) (*registry.Record, error) {
		return w.Confirm(rec, actor, s.now())
	})
}

// RejectRepair sends a pending repair report of the asset back with reason.
func (s *Service) RejectRepair(ctx context.Context, code string, actor maintenance.Actor, reason string) (*registry.Record, error) {
	return s.decide(ctx, code, actor, "reject repair of "+code, func(w *maintenance.Workflow, rec *registry.Record) (*registry.Record, error) {
		return w.Reject(rec, actor, reason, s.now())
	})
}

func (s *Service) decide(ctx context.Context, code string, actor maintenance.Actor, message string,
	fn func(*maintenance.Workflow, *registry.Record) (*registry.Record, error)) (*registry.Record, error) {
	var out *registry.Record
	err := s.mutate(ctx, actor.Name(), message, func(doc *registry.Document) error {
		i := doc.FindAssetByCode(code)
		if i < 0 {
			return fmt.Errorf("%w: asset code %q", registry.ErrNotFound, code)
		}
		rec, err := fn(maintenance.New(doc.MaintenanceStatusChoices), doc.Assets[i])
		if err != nil {
			return err
		}
		s.metrics.IncrementRepairTransition(string(maintenance.StateOf(rec.Text(registry.FieldMaintenance))))
		doc.Assets[i] = rec
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextCode returns the next unused asset code of the given kind.
func (s *Service) NextCode(ctx context.Context, kind sequence.Kind) (string, error) {
	doc, err := s.view(ctx)
	if err != nil {
		return "", err
	}
	return sequence.NextCode(doc, kind), nil
}
