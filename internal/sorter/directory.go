package sorter

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"gmailsorter/internal/model"
)

// Directory maps label names to ids and back. It is built once per run and
// never refreshed.
type Directory struct {
	byName map[string]string
	byID   map[string]string
	labels []model.Label
}

// NewDirectory builds a directory from a label listing. When two labels share
// a name the first one listed wins; the rest are logged and left out.
func NewDirectory(labels []model.Label, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Directory{
		byName: make(map[string]string, len(labels)),
		byID:   make(map[string]string, len(labels)),
	}
	for _, l := range labels {
		if l.ID == "" {
			logger.Warn("Ignoring label without id", zap.String("name", l.Name))
			continue
		}
		if prev, ok := d.byName[l.Name]; ok {
			logger.Warn("Duplicate label name in listing",
				zap.String("name", l.Name),
				zap.String("kept_id", prev),
				zap.String("ignored_id", l.ID))
			continue
		}
		d.byName[l.Name] = l.ID
		d.byID[l.ID] = l.Name
		d.labels = append(d.labels, l)
	}
	return d
}

// LoadDirectory lists the mailbox labels and builds a directory from them.
func LoadDirectory(ctx context.Context, lister LabelLister, logger *zap.Logger) (*Directory, error) {
	labels, err := lister.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return NewDirectory(labels, logger), nil
}

// ID returns the id of the label called name.
func (d *Directory) ID(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	id, ok := d.byName[name]
	return id, ok
}

// Name returns the display name of the label with the given id.
func (d *Directory) Name(id string) (string, bool) {
	if d == nil {
		return "", false
	}
	name, ok := d.byID[id]
	return name, ok
}

// Len returns the number of labels in the directory.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byID)
}

// Labels returns the labels sorted by name.
func (d *Directory) Labels() []model.Label {
	if d == nil {
		return nil
	}
	out := make([]model.Label, len(d.labels))
	copy(out, d.labels)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NameToID returns a copy of the name → id mapping.
func (d *Directory) NameToID() map[string]string {
	out := make(map[string]string, d.Len())
	if d != nil {
		for k, v := range d.byName {
			out[k] = v
		}
	}
	return out
}

// StaleLabelIDs returns the table's label ids that the directory does not know,
// in table order.
func (d *Directory) StaleLabelIDs(table model.RuleTable) []string {
	var stale []string
	for _, e := range table {
		if _, ok := d.Name(e.LabelID); !ok {
			stale = append(stale, e.LabelID)
		}
	}
	return stale
}
