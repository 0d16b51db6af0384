package model

// buildToolUnknownStr is the string representation for the unknown tool.
const buildToolUnknownStr = "unknown"

// BuildTool identifies the frontend toolchain that produced a site.
// The set is closed; detection that reaches no threshold yields
// BuildToolUnknown with confidence exactly 0.
type BuildTool string

// Build tool constants.
const (
	// BuildToolUnknown means no detector reached its threshold.
	BuildToolUnknown BuildTool = ""
	// BuildToolVite represents Vite.
	BuildToolVite BuildTool = "vite"
	// BuildToolNext represents Next.js.
	BuildToolNext BuildTool = "next"
	// BuildToolNuxt represents Nuxt.
	BuildToolNuxt BuildTool = "nuxt"
	// BuildToolCreateReactApp represents create-react-app.
	BuildToolCreateReactApp BuildTool = "create-react-app"
	// BuildToolVueCLI represents Vue CLI.
	BuildToolVueCLI BuildTool = "vue-cli"
	// BuildToolAngular represents Angular CLI.
	BuildToolAngular BuildTool = "angular"
	// BuildToolWebpack represents a generic webpack build with no more
	// specific framework signal.
	BuildToolWebpack BuildTool = "webpack"
)

// String returns the string representation of the BuildTool.
func (t BuildTool) String() string {
	if t == BuildToolUnknown {
		return buildToolUnknownStr
	}
	return string(t)
}

// IsValid returns true if this is a known build tool.
func (t BuildTool) IsValid() bool {
	switch t {
	case BuildToolVite, BuildToolNext, BuildToolNuxt, BuildToolCreateReactApp,
		BuildToolVueCLI, BuildToolAngular, BuildToolWebpack:
		return true
	default:
		return false
	}
}

// ParseBuildTool converts a string to a BuildTool.
func ParseBuildTool(s string) BuildTool {
	switch s {
	case "vite":
		return BuildToolVite
	case "next", "nextjs", "next.js":
		return BuildToolNext
	case "nuxt", "nuxtjs":
		return BuildToolNuxt
	case "create-react-app", "cra":
		return BuildToolCreateReactApp
	case "vue-cli", "vuecli":
		return BuildToolVueCLI
	case "angular":
		return BuildToolAngular
	case "webpack":
		return BuildToolWebpack
	default:
		return BuildToolUnknown
	}
}

// Signals carries the page-level evidence fed to the build-tool detector.
// Booleans come from runtime-global and mount-point markers on the entry
// page; ScriptSources preserves the document order of script URLs because
// chunk naming conventions are the strongest bundler evidence.
type Signals struct {
	// HasVue is true when a Vue runtime marker was observed.
	HasVue bool `json:"hasVue"`
	// HasReact is true when a React runtime marker was observed.
	HasReact bool `json:"hasReact"`
	// HasAngular is true when an ng-version attribute or Angular runtime
	// marker was observed.
	HasAngular bool `json:"hasAngular"`
	// HasVite is true when a Vite marker (dev client, import-map preamble)
	// was observed.
	HasVite bool `json:"hasVite"`
	// HasNext is true when the __next mount point or __NEXT_DATA__ payload
	// was observed.
	HasNext bool `json:"hasNext"`
	// HasNuxt is true when the __nuxt mount point or window.__NUXT__ payload
	// was observed.
	HasNuxt bool `json:"hasNuxt"`
	// ScriptSources is the ordered list of script URLs on the entry page.
	ScriptSources []string `json:"scriptSources"`
	// MetaGenerator is the content of <meta name="generator">, if present.
	MetaGenerator string `json:"metaGenerator,omitempty"`
}

// Empty reports whether no signal of any kind was collected.
func (s Signals) Empty() bool {
	return !s.HasVue && !s.HasReact && !s.HasAngular && !s.HasVite &&
		!s.HasNext && !s.HasNuxt && len(s.ScriptSources) == 0 &&
		s.MetaGenerator == ""
}

// Fingerprint is the frozen detection result for a session.
//
// Invariant: Confidence for BuildToolUnknown is always exactly 0; every
// other identity carries at least its detector's threshold. Once computed
// above threshold the fingerprint never changes for the session, even if
// later pages would suggest a different tool.
type Fingerprint struct {
	// Tool is the detected build tool identity.
	Tool BuildTool `json:"tool"`

	// Confidence is the detector's score in [0,1].
	Confidence float64 `json:"confidence"`

	// Evidence names the signals that produced the match, e.g.
	// "script:chunk-vendors" or "marker:vite-client". Kept for the
	// recovery UI and the clone report.
	Evidence []string `json:"evidence,omitempty"`
}

// Known reports whether detection succeeded.
func (f Fingerprint) Known() bool {
	return f.Tool != BuildToolUnknown
}
