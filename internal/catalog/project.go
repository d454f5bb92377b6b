package catalog

import (
	"covenant/api/internal/document"
	"covenant/api/internal/moderation"
)

const TypeProject = "project"

// Project is a product or engagement that consumes catalogued components.
type Project struct {
	ID           string                 `json:"id"`
	Name         *string                `json:"name,omitempty"`
	Description  *string                `json:"description,omitempty"`
	Version      *string                `json:"version,omitempty"`
	BusinessUnit *string                `json:"businessUnit,omitempty"`
	State        *string                `json:"state,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	Contributors []string               `json:"contributors,omitempty"`
	ExternalRefs []document.ExternalRef `json:"externalRefs,omitempty"`
}

func (p *Project) clone() *Project {
	out := *p
	out.Tags = append([]string(nil), p.Tags...)
	out.Contributors = append([]string(nil), p.Contributors...)
	out.ExternalRefs = cloneRefs(p.ExternalRefs)
	out.Name = copyPtr(p.Name)
	out.Description = copyPtr(p.Description)
	out.Version = copyPtr(p.Version)
	out.BusinessUnit = copyPtr(p.BusinessUnit)
	out.State = copyPtr(p.State)
	return &out
}

var ProjectSchema = &document.Schema[Project]{
	Type: TypeProject,
	Scalars: []document.ScalarField[Project]{
		{Name: "name", Get: func(p *Project) *string { return p.Name }, Set: func(p *Project, v *string) { p.Name = v }},
		{Name: "description", Get: func(p *Project) *string { return p.Description }, Set: func(p *Project, v *string) { p.Description = v }},
		{Name: "version", Get: func(p *Project) *string { return p.Version }, Set: func(p *Project, v *string) { p.Version = v }},
		{Name: "businessUnit", Get: func(p *Project) *string { return p.BusinessUnit }, Set: func(p *Project, v *string) { p.BusinessUnit = v }},
		{Name: "state", Get: func(p *Project) *string { return p.State }, Set: func(p *Project, v *string) { p.State = v }},
	},
	Sets: []document.SetField[Project]{
		{Name: "tags", Get: func(p *Project) []string { return p.Tags }, Set: func(p *Project, v []string) { p.Tags = v }},
		{Name: "contributors", Get: func(p *Project) []string { return p.Contributors }, Set: func(p *Project, v []string) { p.Contributors = v }},
	},
	Refs: []document.RefField[Project]{
		{Name: "externalRefs", Get: func(p *Project) []document.ExternalRef { return p.ExternalRefs }, Set: func(p *Project, v []document.ExternalRef) { p.ExternalRefs = v }},
	},
	Clone: func(p *Project) *Project { return p.clone() },
}

func projectGroup(_, _ *Project) string {
	return moderation.GroupModerators
}
