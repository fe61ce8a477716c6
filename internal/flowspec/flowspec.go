// Package flowspec loads flow and stage definitions from a YAML document and
// installs them into storage.
//
// A document declares a catalog of named stages and the flows built from
// them:
//
//	stages:
//	  - name: Intake
//	    notifies_on_entry: true
//	    default_message: "A new contract has entered intake."
//	  - name: Review
//	  - name: Award
//	    posts_listing: true
//	flows:
//	  - name: standard
//	    stages: [Intake, Review, Award]
//
// Stages are shared across flows by name. Installation is all-or-nothing: a
// document that fails validation or collides with an existing flow name
// leaves the catalog untouched.
package flowspec

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// Document is the root of a flow definition file.
type Document struct {
	Stages []StageDef `yaml:"stages"`
	Flows  []FlowDef  `yaml:"flows"`
}

// StageDef declares one stage in the catalog.
type StageDef struct {
	Name            string `yaml:"name"`
	NotifiesOnEntry bool   `yaml:"notifies_on_entry"`
	PostsListing    bool   `yaml:"posts_listing"`
	DefaultMessage  string `yaml:"default_message"`
}

// FlowDef declares one flow as an ordered list of stage names.
type FlowDef struct {
	Name   string   `yaml:"name"`
	Stages []string `yaml:"stages"`
}

// Parse decodes and validates a flow definition document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing flow definitions: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document for internal consistency. Flow stage
// references may name stages declared in this document or stages already
// installed; unresolvable names are caught at install time.
func (d *Document) Validate() error {
	if len(d.Flows) == 0 {
		return errors.New("document declares no flows")
	}
	names := make(map[string]bool, len(d.Stages))
	for i, s := range d.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		names[s.Name] = true
	}
	flowNames := make(map[string]bool, len(d.Flows))
	for i, f := range d.Flows {
		if f.Name == "" {
			return fmt.Errorf("flow %d has no name", i)
		}
		if flowNames[f.Name] {
			return fmt.Errorf("duplicate flow name %q", f.Name)
		}
		flowNames[f.Name] = true
		if len(f.Stages) == 0 {
			return fmt.Errorf("flow %q declares no stages", f.Name)
		}
		seen := make(map[string]bool, len(f.Stages))
		for _, name := range f.Stages {
			if seen[name] {
				return fmt.Errorf("flow %q repeats stage %q", f.Name, name)
			}
			seen[name] = true
		}
	}
	return nil
}

// Install writes the document's stages and flows to storage in a single
// transaction. Stage names already present in the catalog are reused rather
// than duplicated; a flow name already present is an error, since installed
// flows are immutable.
func Install(ctx context.Context, store storage.Storage, doc *Document) ([]*types.Flow, error) {
	existing, err := store.ListStages(ctx)
	if err != nil {
		return nil, err
	}
	stageIDs := make(map[string]int64, len(existing))
	for _, s := range existing {
		stageIDs[s.Name] = s.ID
	}

	var installed []*types.Flow
	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, def := range doc.Stages {
			if _, ok := stageIDs[def.Name]; ok {
				continue
			}
			stage := &types.Stage{
				Name:            def.Name,
				NotifiesOnEntry: def.NotifiesOnEntry,
				PostsListing:    def.PostsListing,
				DefaultMessage:  def.DefaultMessage,
			}
			if err := tx.CreateStage(ctx, stage); err != nil {
				return err
			}
			stageIDs[def.Name] = stage.ID
		}

		for _, def := range doc.Flows {
			if _, err := tx.GetFlowByName(ctx, def.Name); err == nil {
				return fmt.Errorf("flow %q already exists: %w", def.Name, storage.ErrDuplicate)
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			order := make([]int64, 0, len(def.Stages))
			for _, name := range def.Stages {
				id, ok := stageIDs[name]
				if !ok {
					return fmt.Errorf("flow %q references unknown stage %q", def.Name, name)
				}
				order = append(order, id)
			}
			flow := &types.Flow{Name: def.Name, StageOrder: order}
			if err := tx.CreateFlow(ctx, flow); err != nil {
				return err
			}
			installed = append(installed, flow)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return installed, nil
}
