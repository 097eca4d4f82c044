// Package rules reads and writes the rule table as a YAML document.
//
// The document is a mapping from label (name or id) to a list of senders.
// Mapping order is table order, so the first label listed wins when a sender
// appears under several labels:
//
//	Receipts:
//	  - email: orders@shop.com
//	    name: Shop
//	  - billing@isp.net
//	Label_42:
//	  - news@example.com
package rules

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"gmailsorter/internal/model"
	"gmailsorter/internal/util"
)

// ErrUnknownLabel is returned when a document names a label the mailbox lacks.
var ErrUnknownLabel = errors.New("unknown label")

// Entry is one label block of a rule document, before label resolution.
type Entry struct {
	Label string
	Line  int
	Rules []model.SenderRule
}

// LabelResolver translates between label names and ids.
type LabelResolver interface {
	ID(name string) (string, bool)
	Name(id string) (string, bool)
}

// Decode parses a rule document, keeping label and rule order.
func Decode(r io.Reader) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of label to senders", root.Line)
	}

	var entries []Entry
	seenLabel := make(map[string]int)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		label := strings.TrimSpace(key.Value)
		if label == "" {
			return nil, fmt.Errorf("line %d: empty label", key.Line)
		}
		if prev, ok := seenLabel[label]; ok {
			return nil, fmt.Errorf("line %d: label %q already listed on line %d", key.Line, label, prev)
		}
		seenLabel[label] = key.Line

		rules, err := decodeRules(val)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", label, err)
		}
		entries = append(entries, Entry{Label: label, Line: key.Line, Rules: rules})
	}
	return entries, nil
}

func decodeRules(n *yaml.Node) ([]model.SenderRule, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of senders", n.Line)
	}
	var rules []model.SenderRule
	seen := make(map[string]int)
	for _, item := range n.Content {
		var rule model.SenderRule
		switch item.Kind {
		case yaml.ScalarNode:
			rule.SenderEmail = item.Value
		case yaml.MappingNode:
			if err := item.Decode(&rule); err != nil {
				return nil, fmt.Errorf("line %d: %w", item.Line, err)
			}
		default:
			return nil, fmt.Errorf("line %d: expected an address or {email, name}", item.Line)
		}
		rule.SenderEmail = util.NormalizeAddress(rule.SenderEmail)
		rule.SenderName = strings.TrimSpace(rule.SenderName)
		if !util.ValidAddress(rule.SenderEmail) {
			return nil, fmt.Errorf("line %d: invalid sender %q", item.Line, rule.SenderEmail)
		}
		key := util.AddressKey(rule.SenderEmail)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("line %d: sender %s already listed on line %d", item.Line, rule.SenderEmail, prev)
		}
		seen[key] = item.Line
		rules = append(rules, rule)
	}
	return rules, nil
}

// Resolve maps each entry's label to a label id. A key that is already a
// known id is kept; otherwise it is looked up by name. Entries without rules
// are dropped.
func Resolve(entries []Entry, labels LabelResolver) (model.RuleTable, error) {
	var table model.RuleTable
	seen := make(map[string]string)
	for _, e := range entries {
		if len(e.Rules) == 0 {
			continue
		}
		id := e.Label
		if _, ok := labels.Name(id); !ok {
			var found bool
			if id, found = labels.ID(e.Label); !found {
				return nil, fmt.Errorf("line %d: %q: %w", e.Line, e.Label, ErrUnknownLabel)
			}
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("line %d: %q and %q name the same label", e.Line, prev, e.Label)
		}
		seen[id] = e.Label
		rules := make([]model.SenderRule, len(e.Rules))
		copy(rules, e.Rules)
		table = append(table, model.LabelRules{LabelID: id, Rules: rules})
	}
	return table, nil
}

// Encode writes table as a rule document. Labels are written by name when
// labels knows them and by id otherwise, so stale entries survive a round trip.
func Encode(w io.Writer, table model.RuleTable, labels LabelResolver) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range table {
		key := e.LabelID
		if labels != nil {
			if name, ok := labels.Name(e.LabelID); ok {
				key = name
			}
		}
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, r := range e.Rules {
			if r.SenderName == "" {
				seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.SenderEmail})
				continue
			}
			item := &yaml.Node{}
			if err := item.Encode(r); err != nil {
				return fmt.Errorf("encode rule %s: %w", r.SenderEmail, err)
			}
			seq.Content = append(seq.Content, item)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			seq)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return enc.Close()
}
