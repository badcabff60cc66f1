package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/ir"
)

// Fixture is a content tree to seed a store with.
type Fixture struct {
	Nodes       []ir.Node       `yaml:"nodes"`
	ChannelSets []ir.ChannelSet `yaml:"channelsets"`
	Entities    []FixtureEntity `yaml:"entities"`
}

// FixtureEntity is the YAML form of an entity. Kind and id sit at the top
// level instead of inside a ref.
type FixtureEntity struct {
	Kind         ir.Kind           `yaml:"kind"`
	ID           int64             `yaml:"id"`
	GlobalID     string            `yaml:"global_id,omitempty"`
	ChannelID    int64             `yaml:"channel_id,omitempty"`
	FolderID     int64             `yaml:"folder_id,omitempty"`
	NodeID       int64             `yaml:"node_id,omitempty"`
	ChannelSetID int64             `yaml:"channelset_id,omitempty"`
	MasterID     int64             `yaml:"master_id,omitempty"`
	ContentSetID int64             `yaml:"contentset_id,omitempty"`
	ContentID    int64             `yaml:"content_id,omitempty"`
	Container    *ir.EntityRef     `yaml:"container,omitempty"`
	Online       bool              `yaml:"online,omitempty"`
	Attributes   map[string]string `yaml:"attributes,omitempty"`
}

// Entity converts the fixture row into an entity.
func (f FixtureEntity) Entity() *ir.Entity {
	return &ir.Entity{
		Ref:          ir.EntityRef{Kind: f.Kind, ID: f.ID, GlobalID: f.GlobalID, ChannelID: f.ChannelID},
		FolderID:     f.FolderID,
		NodeID:       f.NodeID,
		ChannelSetID: f.ChannelSetID,
		MasterID:     f.MasterID,
		ContentSetID: f.ContentSetID,
		ContentID:    f.ContentID,
		Container:    f.Container,
		Online:       f.Online,
		Attributes:   f.Attributes,
	}
}

// ParseFixture decodes a YAML fixture. Unknown fields are rejected.
func ParseFixture(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	for i, e := range f.Entities {
		if _, err := ir.ParseKind(string(e.Kind)); err != nil {
			return nil, fmt.Errorf("fixture entity %d: %w", i, err)
		}
		if ir.IsEmptyID(e.ID) {
			return nil, fmt.Errorf("fixture entity %d: empty id", i)
		}
	}
	return &f, nil
}

// LoadFixture reads and decodes a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// Seed writes every row of f in one transaction.
func (s *Store) Seed(ctx context.Context, f *Fixture) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, n := range f.Nodes {
			if err := saveNode(ctx, tx, n); err != nil {
				return err
			}
		}
		for _, cs := range f.ChannelSets {
			if err := saveChannelSet(ctx, tx, cs); err != nil {
				return err
			}
		}
		for _, e := range f.Entities {
			if err := saveEntity(ctx, tx, e.Entity()); err != nil {
				return err
			}
		}
		return nil
	})
}
