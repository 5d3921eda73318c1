package ember

// Stage identifies one of the fixed draw stages a submission renders in.
// Stages run in declaration order every frame; submissions within a stage
// batch by material and mesh.
type Stage int

const (
	// StageSunFlare renders additively over the sky, before opaque
	// geometry.
	StageSunFlare Stage = iota

	// StageOpaque renders depth-tested, depth-writing geometry.
	StageOpaque

	// StageDecal renders alpha-blended geometry that tests depth without
	// writing it (bullet holes, scorch marks).
	StageDecal

	// StageParticleAlpha renders alpha-blended particles, depth read
	// only.
	StageParticleAlpha

	// StageParticleAdditive renders additive particles, depth read only.
	StageParticleAdditive

	// StageOverlay renders alpha-blended elements over the post-processed
	// image (HUD sprites).
	StageOverlay

	numStages
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	switch s {
	case StageSunFlare:
		return "SunFlare"
	case StageOpaque:
		return "Opaque"
	case StageDecal:
		return "Decal"
	case StageParticleAlpha:
		return "ParticleAlpha"
	case StageParticleAdditive:
		return "ParticleAdditive"
	case StageOverlay:
		return "Overlay"
	default:
		return "Unknown"
	}
}

// PostProcessMode selects the full-screen treatment applied when the
// rendered scene is resolved to the surface.
type PostProcessMode int

const (
	// PostPassthrough copies the scene unmodified.
	PostPassthrough PostProcessMode = iota

	// PostDesaturate renders the scene in grayscale.
	PostDesaturate

	// PostScanLines overlays CRT-style scan lines.
	PostScanLines

	// PostWarp distorts the scene with animated warping.
	PostWarp
)

// String returns the string representation of PostProcessMode.
func (m PostProcessMode) String() string {
	switch m {
	case PostPassthrough:
		return "Passthrough"
	case PostDesaturate:
		return "Desaturate"
	case PostScanLines:
		return "ScanLines"
	case PostWarp:
		return "Warp"
	default:
		return "Unknown"
	}
}
