package command

import (
	"encoding/json"
	"fmt"
)

// pushCommonWire mirrors pushCommon's fields but keeps Changes as raw
// messages, since json.Unmarshal cannot construct Change's concrete
// variants from its interface type on its own.
type pushCommonWire struct {
	Header
	ProjectName    string            `json:"projectName"`
	RepositoryName string            `json:"repositoryName"`
	BaseRevision   Revision          `json:"baseRevision"`
	Summary        string            `json:"summary"`
	Detail         string            `json:"detail"`
	Markup         Markup            `json:"markup"`
	Changes        []json.RawMessage `json:"changes"`
}

// MarshalJSON encodes each Change with its own "type" discriminator,
// matching the wire example in spec.md §6.
func (p pushCommon) MarshalJSON() ([]byte, error) {
	rawChanges := make([]json.RawMessage, 0, len(p.Changes))

	for _, ch := range p.Changes {
		raw, err := EncodeChange(ch)
		if err != nil {
			return nil, fmt.Errorf("marshaling change %s: %w", ch.ChangeType(), err)
		}

		rawChanges = append(rawChanges, raw)
	}

	return json.Marshal(pushCommonWire{
		Header:         p.Header,
		ProjectName:    p.ProjectName,
		RepositoryName: p.RepositoryName,
		BaseRevision:   p.BaseRevision,
		Summary:        p.Summary,
		Detail:         p.Detail,
		Markup:         p.Markup,
		Changes:        rawChanges,
	})
}

// UnmarshalJSON decodes Changes through DecodeChange so each element
// resolves to its concrete Change variant.
func (p *pushCommon) UnmarshalJSON(data []byte) error {
	var wire pushCommonWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	changes := make([]Change, 0, len(wire.Changes))

	for _, raw := range wire.Changes {
		ch, err := DecodeChange(raw)
		if err != nil {
			return fmt.Errorf("decoding push change: %w", err)
		}

		changes = append(changes, ch)
	}

	p.Header = wire.Header
	p.ProjectName = wire.ProjectName
	p.RepositoryName = wire.RepositoryName
	p.BaseRevision = wire.BaseRevision
	p.Summary = wire.Summary
	p.Detail = wire.Detail
	p.Markup = wire.Markup
	p.Changes = changes

	return nil
}
