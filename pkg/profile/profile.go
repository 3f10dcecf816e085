// Package profile ships security dimension presets: named bundles of custom
// dimensions plus routing entries that an engine merges into its defaults
// before any use case context is constructed.
//
// Three packs are built in: "restricted" (content-security controls for
// partner-restricted material), "pipeline" (production pipeline and facility
// security), and "enterprise" (InfoSec controls aligned with ISO 27001 /
// SOC 2). Custom packs register by name, directly or from YAML.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/routing"
)

// Preset is one named pack of dimensions and routing entries.
type Preset struct {
	Name       string
	Dimensions []dimension.Dimension
	Routing    []routing.Entry
}

// Profile is a composed bundle of one or more presets.
type Profile struct {
	Dimensions []dimension.Dimension
	Routing    []routing.Entry
	Presets    []string
}

// Merge returns a new profile combining both; other's routes win on overlap
// and dimension identity dedupes on key.
func (p Profile) Merge(other Profile) Profile {
	merged := Profile{}
	seen := make(map[string]bool)
	for _, d := range append(append([]dimension.Dimension{}, p.Dimensions...), other.Dimensions...) {
		if seen[d.Key] {
			continue
		}
		seen[d.Key] = true
		merged.Dimensions = append(merged.Dimensions, d)
	}
	merged.Routing = append(append([]routing.Entry{}, p.Routing...), other.Routing...)
	seenPresets := make(map[string]bool)
	for _, n := range append(append([]string{}, p.Presets...), other.Presets...) {
		if seenPresets[n] {
			continue
		}
		seenPresets[n] = true
		merged.Presets = append(merged.Presets, n)
	}
	return merged
}

// Registry holds the available presets. Construct one per process; the
// built-in packs are preloaded.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry creates a registry with the built-in packs.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset)}
	for _, p := range []Preset{restrictedPreset(), pipelinePreset(), enterprisePreset()} {
		r.presets[p.Name] = p
	}
	return r
}

// Register adds or replaces a preset pack by name.
func (r *Registry) Register(p Preset) {
	r.presets[strings.ToLower(p.Name)] = p
}

// Unregister removes a preset. Returns true if it existed.
func (r *Registry) Unregister(name string) bool {
	name = strings.ToLower(name)
	if _, ok := r.presets[name]; !ok {
		return false
	}
	delete(r.presets, name)
	return true
}

// Names returns the registered preset names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.presets))
	for name := range r.presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build composes a profile from one or more preset names.
func (r *Registry) Build(names ...string) (Profile, error) {
	var profile Profile
	for _, name := range names {
		key := strings.ToLower(name)
		preset, ok := r.presets[key]
		if !ok {
			return Profile{}, fmt.Errorf("unknown security preset %q (available: %s)",
				name, strings.Join(r.Names(), ", "))
		}
		profile = profile.Merge(Profile{
			Dimensions: preset.Dimensions,
			Routing:    preset.Routing,
			Presets:    []string{key},
		})
	}
	return profile, nil
}

func tiers(d dimension.Dimension, low, medium, high, critical string) []routing.Entry {
	return []routing.Entry{
		{Dimension: d, Level: risk.LevelLow, Reviewer: low},
		{Dimension: d, Level: risk.LevelMedium, Reviewer: medium},
		{Dimension: d, Level: risk.LevelHigh, Reviewer: high},
		{Dimension: d, Level: risk.LevelCritical, Reviewer: critical},
	}
}

func restrictedPreset() Preset {
	contentSecurity := dimension.Dimension{Key: "CONTENT_SECURITY", Label: "Content Security"}
	physicalSecurity := dimension.Dimension{Key: "PHYSICAL_SECURITY", Label: "Physical Security"}
	digitalSecurity := dimension.Dimension{Key: "DIGITAL_SECURITY", Label: "Digital Security"}
	assetManagement := dimension.Dimension{Key: "ASSET_MANAGEMENT", Label: "Asset Management"}
	incidentResponse := dimension.Dimension{Key: "INCIDENT_RESPONSE", Label: "Incident Response"}
	personnelSecurity := dimension.Dimension{Key: "PERSONNEL_SECURITY", Label: "Personnel Security"}

	p := Preset{
		Name: "restricted",
		Dimensions: []dimension.Dimension{
			contentSecurity, physicalSecurity, digitalSecurity,
			assetManagement, incidentResponse, personnelSecurity,
		},
	}
	p.Routing = append(p.Routing, tiers(contentSecurity,
		"Security Coordinator", "Content Security Manager", "VP Security / CISO", "CISO + Studio Security Liaison")...)
	p.Routing = append(p.Routing, tiers(physicalSecurity,
		"Facility Manager", "Physical Security Lead", "VP Facilities / CISO", "CISO + External Security Audit")...)
	p.Routing = append(p.Routing, tiers(digitalSecurity,
		"IT Security Analyst", "IT Security Manager", "CISO / VP Engineering", "CISO + External Penetration Review")...)
	p.Routing = append(p.Routing, tiers(assetManagement,
		"Asset Coordinator", "Asset Management Lead", "VP Production Technology", "CTO + Studio Asset Security")...)
	p.Routing = append(p.Routing, tiers(incidentResponse,
		"SOC Analyst", "Incident Response Lead", "CISO / VP Security", "CISO + Legal + Crisis Management")...)
	p.Routing = append(p.Routing, tiers(personnelSecurity,
		"HR Security Coordinator", "HR Director + Security Lead", "VP HR + CISO", "C-Suite + External Investigation")...)
	return p
}

func pipelinePreset() Preset {
	secureTransfer := dimension.Dimension{Key: "SECURE_TRANSFER", Label: "Secure Transfer / Delivery"}
	renderIsolation := dimension.Dimension{Key: "RENDER_ISOLATION", Label: "Render Farm Isolation"}
	workstation := dimension.Dimension{Key: "WORKSTATION_SECURITY", Label: "Workstation Security"}
	cloudSecurity := dimension.Dimension{Key: "CLOUD_SECURITY", Label: "Cloud / Hybrid Security"}
	dataClassification := dimension.Dimension{Key: "DATA_CLASSIFICATION", Label: "Data Classification & Handling"}
	vendorSecurity := dimension.Dimension{Key: "VENDOR_SECURITY", Label: "Third-Party Vendor Security"}

	p := Preset{
		Name: "pipeline",
		Dimensions: []dimension.Dimension{
			secureTransfer, renderIsolation, workstation,
			cloudSecurity, dataClassification, vendorSecurity,
		},
	}
	p.Routing = append(p.Routing, tiers(secureTransfer,
		"Pipeline TD", "Pipeline Supervisor", "Head of Technology / CISO", "CTO + Studio Delivery Security")...)
	p.Routing = append(p.Routing, tiers(renderIsolation,
		"Render Wrangler", "Systems Administrator", "VP Technology / CISO", "CTO + External Infrastructure Audit")...)
	p.Routing = append(p.Routing, tiers(workstation,
		"IT Support Lead", "IT Security Manager", "CISO / VP Technology", "CISO + Endpoint Security Review")...)
	p.Routing = append(p.Routing, tiers(cloudSecurity,
		"Cloud Operations Engineer", "Cloud Security Architect", "VP Cloud Infrastructure / CISO", "CTO + External Cloud Audit")...)
	p.Routing = append(p.Routing, tiers(dataClassification,
		"Data Steward", "Data Governance Lead", "CISO / VP Data Governance", "CISO + Legal + Studio Compliance")...)
	p.Routing = append(p.Routing, tiers(vendorSecurity,
		"Vendor Manager", "Procurement Security Lead", "VP Procurement + CISO", "C-Suite + External Vendor Audit")...)
	return p
}

func enterprisePreset() Preset {
	accessControl := dimension.Dimension{Key: "ACCESS_CONTROL", Label: "Access Control (IAM)"}
	auditTrail := dimension.Dimension{Key: "AUDIT_TRAIL", Label: "Audit Trail / Logging"}
	dataPrivacy := dimension.Dimension{Key: "DATA_PRIVACY", Label: "Data Privacy (GDPR/CCPA)"}
	compliance := dimension.Dimension{Key: "REG_COMPLIANCE", Label: "Regulatory Compliance"}
	continuity := dimension.Dimension{Key: "BUSINESS_CONTINUITY", Label: "Business Continuity / DR"}

	p := Preset{
		Name: "enterprise",
		Dimensions: []dimension.Dimension{
			accessControl, auditTrail, dataPrivacy, compliance, continuity,
		},
	}
	p.Routing = append(p.Routing, tiers(accessControl,
		"IAM Administrator", "IAM Security Lead", "CISO / VP Security", "CISO + External Identity Audit")...)
	p.Routing = append(p.Routing, tiers(auditTrail,
		"Compliance Analyst", "Compliance Manager", "VP Compliance / CISO", "CISO + External Auditor")...)
	p.Routing = append(p.Routing, tiers(dataPrivacy,
		"Privacy Analyst", "Data Protection Officer", "DPO + Legal Counsel", "DPO + General Counsel + C-Suite")...)
	p.Routing = append(p.Routing, tiers(compliance,
		"Compliance Analyst", "Compliance Officer", "VP Compliance + Legal", "General Counsel + Board Audit Committee")...)
	p.Routing = append(p.Routing, tiers(continuity,
		"BC Coordinator", "BC Manager", "VP Operations / CTO", "C-Suite + External DR Review")...)
	return p
}
