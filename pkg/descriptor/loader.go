// Package descriptor provides a reference Descriptor Loader: it parses a
// CUE-typed fixture assembly file into the typed ComponentSpec records
// pkg/deploy operates on. The SCA SPD/SAD grammar itself is out of scope
// to redesign; CUE here only shapes the fixture/test data this package
// loads, the way the teacher's pkg/config uses CUE for its own
// declarative configuration.
package descriptor

import (
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"

	"github.com/redhawk/appfactory/pkg/deploy"
)

// assemblyDocument is the CUE-decodable shape of one fixture assembly
// file.
type assemblyDocument struct {
	SADID                string                          `json:"sadId" validate:"required"`
	Components           []componentDocument             `json:"components" validate:"required,dive"`
	Connections          []deploy.DeclaredConnection      `json:"connections,omitempty"`
	CollocationGroups    []deploy.CollocationGroup        `json:"collocationGroups,omitempty"`
	ExternalPortRefs     []deploy.ExternalPortRef         `json:"externalPorts,omitempty"`
	ExternalPropertyRefs []deploy.ExternalPropertyRef     `json:"externalProperties,omitempty"`
}

type componentDocument struct {
	InstanceID           string                  `json:"instanceId" validate:"required"`
	UsageName            string                  `json:"usageName"`
	SPDPath              string                  `json:"spdPath"`
	IsAssemblyController bool                    `json:"isAssemblyController"`
	IsScaCompliant       bool                    `json:"isScaCompliant"`
	IsResource           bool                    `json:"isResource"`
	UsesNamingService    bool                    `json:"usesNamingService"`
	NamingServiceName    string                  `json:"namingServiceName,omitempty"`
	StartOrder           *int                    `json:"startOrder,omitempty"`
	OverriddenProperties map[string]interface{}  `json:"overriddenProperties,omitempty"`
	ExecParameters       []deploy.ExecParam      `json:"execParameters,omitempty"`
	Implementations      []*deploy.ImplSpec      `json:"implementations" validate:"required,min=1"`
	UsesDevices          []deploy.UsesDeviceSpec `json:"usesDevices,omitempty"`
	ConfigureProperties  []deploy.PropertyRef    `json:"configureProperties,omitempty"`
}

// Loader is a CUE-backed reference implementation of deploy.DescriptorLoader.
type Loader struct {
	cueCtx    *cue.Context
	validator *validator.Validate
}

// NewLoader returns a Descriptor Loader ready to parse fixture assembly
// files.
func NewLoader() *Loader {
	return &Loader{
		cueCtx:    cuecontext.New(),
		validator: validator.New(),
	}
}

// LoadAssembly reads and compiles the CUE file at sadPath, validates its
// shape, and projects it into a deploy.AssemblyDescriptor.
func (l *Loader) LoadAssembly(ctx context.Context, sadPath string) (*deploy.AssemblyDescriptor, error) {
	source, err := os.ReadFile(sadPath)
	if err != nil {
		return nil, fmt.Errorf("read assembly descriptor %q: %w", sadPath, err)
	}

	value := l.cueCtx.CompileBytes(source, cue.Filename(sadPath))
	if value.Err() != nil {
		return nil, fmt.Errorf("compile assembly descriptor %q: %w", sadPath, value.Err())
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("assembly descriptor %q is not concrete: %w", sadPath, err)
	}

	var doc assemblyDocument
	if err := value.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode assembly descriptor %q: %w", sadPath, err)
	}
	if err := l.validator.Struct(doc); err != nil {
		return nil, fmt.Errorf("assembly descriptor %q failed validation: %w", sadPath, err)
	}

	components := make([]*deploy.ComponentSpec, 0, len(doc.Components))
	seen := make(map[string]bool, len(doc.Components))
	for _, c := range doc.Components {
		if seen[c.InstanceID] {
			return nil, fmt.Errorf("assembly descriptor %q: duplicate component instanceId %q", sadPath, c.InstanceID)
		}
		seen[c.InstanceID] = true
		components = append(components, &deploy.ComponentSpec{
			InstanceID:           c.InstanceID,
			UsageName:            c.UsageName,
			SPDPath:              c.SPDPath,
			IsAssemblyController: c.IsAssemblyController,
			IsScaCompliant:       c.IsScaCompliant,
			IsResource:           c.IsResource,
			UsesNamingService:    c.UsesNamingService,
			NamingServiceName:    c.NamingServiceName,
			StartOrder:           c.StartOrder,
			OverriddenProperties: c.OverriddenProperties,
			ExecParameters:       c.ExecParameters,
			Implementations:      c.Implementations,
			UsesDevices:          c.UsesDevices,
			ConfigureProperties:  c.ConfigureProperties,
		})
	}

	for _, group := range doc.CollocationGroups {
		for _, id := range group.ComponentIDs {
			if !seen[id] {
				return nil, fmt.Errorf("assembly descriptor %q: collocation group %q references unknown component %q", sadPath, group.ID, id)
			}
		}
	}

	return &deploy.AssemblyDescriptor{
		SADID:                doc.SADID,
		Components:           components,
		Connections:          doc.Connections,
		CollocationGroups:    doc.CollocationGroups,
		ExternalPortRefs:     doc.ExternalPortRefs,
		ExternalPropertyRefs: doc.ExternalPropertyRefs,
	}, nil
}
