package catalog

import "covenant/api/internal/document"

// NewRegistry assembles the handler registry for every catalogue document
// type. Called once at startup.
func NewRegistry() *document.Registry {
	return document.NewRegistry(
		document.NewHandler(LicenseSchema, licenseGroup),
		document.NewHandler(ProjectSchema, projectGroup),
		document.NewHandler(ReleaseSchema, releaseGroup),
	)
}

func copyPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneObligations(list []document.Obligation) []document.Obligation {
	if list == nil {
		return nil
	}
	out := make([]document.Obligation, len(list))
	for i, ob := range list {
		out[i] = ob
		out[i].Whitelist = append([]string(nil), ob.Whitelist...)
	}
	return out
}

func cloneRefs(list []document.ExternalRef) []document.ExternalRef {
	if list == nil {
		return nil
	}
	out := make([]document.ExternalRef, len(list))
	for i, ref := range list {
		out[i] = ref.Normalize()
	}
	return out
}
