package gmail

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"

	"gmailsorter/internal/model"
	"gmailsorter/internal/util"
)

// Options tunes how a Mailbox talks to Gmail.
type Options struct {
	User        string // "me" unless delegating
	InboxLabel  string // label whose membership defines the inbox
	PageSize    int64  // page size of the inbox listing
	MaxMessages int    // stop listing after this many ids; 0 means no cap
}

func (o Options) withDefaults() Options {
	if o.User == "" {
		o.User = "me"
	}
	if o.InboxLabel == "" {
		o.InboxLabel = model.InboxLabelID
	}
	if o.PageSize <= 0 {
		o.PageSize = 500
	}
	return o
}

// Mailbox implements sorter.Mailbox on top of the Gmail REST API.
type Mailbox struct {
	svc    *gmailv1.Service
	opts   Options
	logger *zap.Logger
}

// NewMailbox wraps an authenticated Gmail service.
func NewMailbox(svc *gmailv1.Service, opts Options, logger *zap.Logger) *Mailbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailbox{svc: svc, opts: opts.withDefaults(), logger: logger}
}

// ListLabels returns every label of the mailbox, system labels included.
func (m *Mailbox) ListLabels(ctx context.Context) ([]model.Label, error) {
	resp, err := m.svc.Users.Labels.List(m.opts.User).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	labels := make([]model.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, model.Label{ID: l.Id, Name: l.Name, Type: l.Type})
	}
	m.logger.Debug("Listed labels", zap.Int("count", len(labels)))
	return labels, nil
}

// ListInboxMessageIDs pages through the inbox and returns message ids in
// listing order (newest first, as Gmail returns them).
func (m *Mailbox) ListInboxMessageIDs(ctx context.Context) ([]string, error) {
	list := m.svc.Users.Messages.List(m.opts.User).
		LabelIds(m.opts.InboxLabel).
		MaxResults(m.opts.PageSize) // page size, not a cap overall

	var ids []string
	pageToken := ""
	for {
		call := list
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
			if m.opts.MaxMessages > 0 && len(ids) >= m.opts.MaxMessages {
				return ids, nil
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

// GetMessage fetches the From and Subject headers of one message.
func (m *Mailbox) GetMessage(ctx context.Context, id string) (model.Message, error) {
	msg, err := m.svc.Users.Messages.Get(m.opts.User, id).
		Format("metadata").
		MetadataHeaders("From", "Subject").
		Context(ctx).
		Do()
	if err != nil {
		return model.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return messageFromPayload(msg.Id, msg.Payload), nil
}

// Reclassify adds labelID to the message and removes it from the inbox in
// one modify call.
func (m *Mailbox) Reclassify(ctx context.Context, messageID, labelID string) error {
	req := &gmailv1.ModifyMessageRequest{
		AddLabelIds:    []string{labelID},
		RemoveLabelIds: []string{m.opts.InboxLabel},
	}
	if _, err := m.svc.Users.Messages.Modify(m.opts.User, messageID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify message %s: %w", messageID, err)
	}
	return nil
}

// CreateLabel creates a user label shown in both the label and message lists.
func (m *Mailbox) CreateLabel(ctx context.Context, name string) (model.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Label{}, fmt.Errorf("label name is required")
	}
	l, err := m.svc.Users.Labels.Create(m.opts.User, &gmailv1.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return model.Label{}, fmt.Errorf("create label %q: %w", name, err)
	}
	m.logger.Info("Created label", zap.String("name", l.Name), zap.String("id", l.Id))
	return model.Label{ID: l.Id, Name: l.Name, Type: l.Type}, nil
}

// messageFromPayload extracts subject and sender from metadata headers.
func messageFromPayload(id string, payload *gmailv1.MessagePart) model.Message {
	msg := model.Message{ID: id}
	if payload == nil {
		return msg
	}
	for _, h := range payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			msg.Subject = h.Value
		case "from":
			msg.SenderName, msg.SenderEmail = util.ParseFrom(h.Value)
		}
	}
	return msg
}

// editableSystemLabels are the system labels offered as rule targets. INBOX
// is left out: a cleanup moves messages out of it.
var editableSystemLabels = map[string]bool{
	"SENT":  true,
	"DRAFT": true,
	"SPAM":  true,
	"TRASH": true,
}

// EditableLabels filters labels down to those a rule may target: user labels
// and a handful of system ones. The result is sorted by name.
func EditableLabels(labels []model.Label) []model.Label {
	var out []model.Label
	for _, l := range labels {
		if l.Type == model.LabelTypeUser || editableSystemLabels[l.ID] {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LabelGroup is a root label and its nested children ("Root/Child").
type LabelGroup struct {
	Root     string
	Label    *model.Label // nil when only children exist
	Children []model.Label
}

// GroupLabels arranges labels by their root path segment, sorted by root name.
func GroupLabels(labels []model.Label) []LabelGroup {
	byRoot := make(map[string]*LabelGroup)
	var roots []string
	get := func(root string) *LabelGroup {
		g, ok := byRoot[root]
		if !ok {
			g = &LabelGroup{Root: root}
			byRoot[root] = g
			roots = append(roots, root)
		}
		return g
	}
	for _, l := range labels {
		l := l
		root, _, nested := strings.Cut(l.Name, "/")
		g := get(root)
		if nested {
			g.Children = append(g.Children, l)
		} else {
			g.Label = &l
		}
	}
	sort.Strings(roots)
	out := make([]LabelGroup, 0, len(roots))
	for _, r := range roots {
		g := byRoot[r]
		sort.SliceStable(g.Children, func(i, j int) bool { return g.Children[i].Name < g.Children[j].Name })
		out = append(out, *g)
	}
	return out
}

// LeafName returns the last path segment of a nested label name.
func LeafName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
