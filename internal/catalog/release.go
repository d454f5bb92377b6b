package catalog

import (
	"covenant/api/internal/document"
	"covenant/api/internal/moderation"
)

const TypeRelease = "release"

// Release is a concrete version of a component. Its export-control fields
// (ECC status, classification numbers) are assessed by a dedicated group.
type Release struct {
	ID             string                 `json:"id"`
	Name           *string                `json:"name,omitempty"`
	Version        *string                `json:"version,omitempty"`
	CpeID          *string                `json:"cpeId,omitempty"`
	ECCStatus      *string                `json:"eccStatus,omitempty"`
	ECCComment     *string                `json:"eccComment,omitempty"`
	AL             *string                `json:"al,omitempty"`
	ECCN           *string                `json:"eccn,omitempty"`
	MainLicenseIDs []string               `json:"mainLicenseIds,omitempty"`
	ExternalRefs   []document.ExternalRef `json:"externalRefs,omitempty"`
}

func (r *Release) clone() *Release {
	out := *r
	out.MainLicenseIDs = append([]string(nil), r.MainLicenseIDs...)
	out.ExternalRefs = cloneRefs(r.ExternalRefs)
	out.Name = copyPtr(r.Name)
	out.Version = copyPtr(r.Version)
	out.CpeID = copyPtr(r.CpeID)
	out.ECCStatus = copyPtr(r.ECCStatus)
	out.ECCComment = copyPtr(r.ECCComment)
	out.AL = copyPtr(r.AL)
	out.ECCN = copyPtr(r.ECCN)
	return &out
}

var ReleaseSchema = &document.Schema[Release]{
	Type: TypeRelease,
	Scalars: []document.ScalarField[Release]{
		{Name: "name", Get: func(r *Release) *string { return r.Name }, Set: func(r *Release, v *string) { r.Name = v }},
		{Name: "version", Get: func(r *Release) *string { return r.Version }, Set: func(r *Release, v *string) { r.Version = v }},
		{Name: "cpeId", Get: func(r *Release) *string { return r.CpeID }, Set: func(r *Release, v *string) { r.CpeID = v }},
		{Name: "eccStatus", Get: func(r *Release) *string { return r.ECCStatus }, Set: func(r *Release, v *string) { r.ECCStatus = v }},
		{Name: "eccComment", Get: func(r *Release) *string { return r.ECCComment }, Set: func(r *Release, v *string) { r.ECCComment = v }},
		{Name: "al", Get: func(r *Release) *string { return r.AL }, Set: func(r *Release, v *string) { r.AL = v }},
		{Name: "eccn", Get: func(r *Release) *string { return r.ECCN }, Set: func(r *Release, v *string) { r.ECCN = v }},
	},
	Sets: []document.SetField[Release]{
		{Name: "mainLicenseIds", Get: func(r *Release) []string { return r.MainLicenseIDs }, Set: func(r *Release, v []string) { r.MainLicenseIDs = v }},
	},
	Refs: []document.RefField[Release]{
		{Name: "externalRefs", Get: func(r *Release) []document.ExternalRef { return r.ExternalRefs }, Set: func(r *Release, v []document.ExternalRef) { r.ExternalRefs = v }},
	},
	Clone: func(r *Release) *Release { return r.clone() },
}

// releaseGroup routes edits touching export-control fields to the ECC
// assessor group; anything else goes to the generic moderators.
func releaseGroup(additions, deletions *Release) string {
	if touchesExportControl(additions) || touchesExportControl(deletions) {
		return moderation.GroupECCAssessors
	}
	return moderation.GroupModerators
}

func touchesExportControl(r *Release) bool {
	if r == nil {
		return false
	}
	return r.ECCStatus != nil || r.ECCComment != nil || r.AL != nil || r.ECCN != nil
}
