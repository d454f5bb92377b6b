// Package catalog declares the concrete document types of the compliance
// catalogue and their field schemas. Schemas are assembled once at startup
// into a registry; diff and merge never switch on document types elsewhere.
package catalog

import (
	"covenant/api/internal/document"
	"covenant/api/internal/moderation"
)

const TypeLicense = "license"

// License is a catalogued software license. Obligations are shared
// sub-entities whose whitelists scope which departments have adopted them.
type License struct {
	ID           string                 `json:"id"`
	FullName     *string                `json:"fullName,omitempty"`
	LicenseText  *string                `json:"licenseText,omitempty"`
	Note         *string                `json:"note,omitempty"`
	LicenseType  *string                `json:"licenseType,omitempty"`
	Risks        []string               `json:"risks,omitempty"`
	Obligations  []document.Obligation  `json:"obligations,omitempty"`
	ExternalRefs []document.ExternalRef `json:"externalRefs,omitempty"`
}

func (l *License) clone() *License {
	out := *l
	out.Risks = append([]string(nil), l.Risks...)
	out.Obligations = cloneObligations(l.Obligations)
	out.ExternalRefs = cloneRefs(l.ExternalRefs)
	out.FullName = copyPtr(l.FullName)
	out.LicenseText = copyPtr(l.LicenseText)
	out.Note = copyPtr(l.Note)
	out.LicenseType = copyPtr(l.LicenseType)
	return &out
}

// LicenseSchema declares every moderatable field of a License.
var LicenseSchema = &document.Schema[License]{
	Type: TypeLicense,
	Scalars: []document.ScalarField[License]{
		{Name: "fullName", Get: func(l *License) *string { return l.FullName }, Set: func(l *License, v *string) { l.FullName = v }},
		{Name: "licenseText", Get: func(l *License) *string { return l.LicenseText }, Set: func(l *License, v *string) { l.LicenseText = v }},
		{Name: "note", Get: func(l *License) *string { return l.Note }, Set: func(l *License, v *string) { l.Note = v }},
		{Name: "licenseType", Get: func(l *License) *string { return l.LicenseType }, Set: func(l *License, v *string) { l.LicenseType = v }},
	},
	Sets: []document.SetField[License]{
		{Name: "risks", Get: func(l *License) []string { return l.Risks }, Set: func(l *License, v []string) { l.Risks = v }},
	},
	Entities: []document.EntityField[License]{
		{Name: "obligations", Get: func(l *License) []document.Obligation { return l.Obligations }, Set: func(l *License, v []document.Obligation) { l.Obligations = v }},
	},
	Refs: []document.RefField[License]{
		{Name: "externalRefs", Get: func(l *License) []document.ExternalRef { return l.ExternalRefs }, Set: func(l *License, v []document.ExternalRef) { l.ExternalRefs = v }},
	},
	Clone: func(l *License) *License { return l.clone() },
}

func licenseGroup(_, _ *License) string {
	return moderation.GroupModerators
}
