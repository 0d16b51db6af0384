package detect

import (
	"sort"
	"strings"

	"github.com/siteclone/siteclone/internal/model"
)

// Detector inspects signals for one tool's fingerprint.
type Detector interface {
	// Detect returns the confidence in [0,1] and the evidence strings
	// that produced it. A confidence below the detector's Threshold
	// means "no claim".
	Detect(signals model.Signals) (float64, []string)

	// Tool returns the identity this detector claims.
	Tool() model.BuildTool

	// Threshold is the minimum confidence this detector must reach to
	// claim a match.
	Threshold() float64

	// Specificity ranks the detector for tie-breaking. Higher values are
	// more specific: a bundler-output marker outranks a framework marker.
	Specificity() int
}

// defaultDetectors is the closed detector set, one per supported tool.
func defaultDetectors() []Detector {
	return []Detector{
		viteDetector{},
		nextDetector{},
		nuxtDetector{},
		craDetector{},
		vueCLIDetector{},
		angularDetector{},
		webpackDetector{},
	}
}

// Analyze runs every detector over the signals and returns the winning
// fingerprint. If no detector reaches its threshold, the result is
// {unknown, 0} with no evidence.
func Analyze(signals model.Signals) model.Fingerprint {
	if signals.Empty() {
		return model.Fingerprint{Tool: model.BuildToolUnknown, Confidence: 0}
	}

	type claim struct {
		tool        model.BuildTool
		confidence  float64
		specificity int
		evidence    []string
	}

	claims := make([]claim, 0, 8)
	for _, d := range defaultDetectors() {
		conf, evidence := d.Detect(signals)
		if conf < d.Threshold() {
			continue
		}
		claims = append(claims, claim{
			tool:        d.Tool(),
			confidence:  conf,
			specificity: d.Specificity(),
			evidence:    evidence,
		})
	}

	if len(claims) == 0 {
		return model.Fingerprint{Tool: model.BuildToolUnknown, Confidence: 0}
	}

	// Highest confidence wins; equal confidence falls back to specificity
	// so a bundler-level match beats a framework-level one. The sort is
	// stable over the fixed detector order, so results are deterministic.
	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].confidence != claims[j].confidence {
			return claims[i].confidence > claims[j].confidence
		}
		return claims[i].specificity > claims[j].specificity
	})

	best := claims[0]
	return model.Fingerprint{
		Tool:       best.tool,
		Confidence: best.confidence,
		Evidence:   best.evidence,
	}
}

// scriptsContain reports whether any script URL contains the substring.
func scriptsContain(signals model.Signals, substr string) (string, bool) {
	for _, src := range signals.ScriptSources {
		if strings.Contains(src, substr) {
			return src, true
		}
	}
	return "", false
}

// Specificity ranks. Bundler-output markers are the most specific, then
// meta-framework output paths, then framework CLI chunk conventions, then
// bare bundler runtime markers.
const (
	specificityVite      = 100
	specificityMetaFw    = 90
	specificityFwCLI     = 80
	specificityGenericWp = 60
)

// viteDetector recognizes Vite. The dev-server client script is a strong
// standalone marker; the HasVite runtime marker alone also clears the 0.9
// bar required of the most specific bundler.
type viteDetector struct{}

func (viteDetector) Tool() model.BuildTool { return model.BuildToolVite }
func (viteDetector) Threshold() float64    { return 0.9 }
func (viteDetector) Specificity() int      { return specificityVite }

func (viteDetector) Detect(signals model.Signals) (float64, []string) {
	var evidence []string
	conf := 0.0

	if src, ok := scriptsContain(signals, "/@vite/client"); ok {
		// Dev-server client script: high-confidence marker on its own.
		conf = 0.95
		evidence = append(evidence, "script:"+src)
	}
	if signals.HasVite {
		if conf < 0.9 {
			conf = 0.9
		}
		evidence = append(evidence, "marker:vite")
	}
	if src, ok := scriptsContain(signals, "/assets/index-"); ok && signals.HasVite {
		// Production chunk naming confirms the marker.
		conf = 0.95
		evidence = append(evidence, "script:"+src)
	}
	return conf, evidence
}

// nextDetector recognizes Next.js output via the /_next/ asset prefix and
// the __NEXT_DATA__ marker. Threshold is provisional (not evidenced by the
// original test corpus) but set at the bundler bar because /_next/ is
// emitted only by Next's build output.
type nextDetector struct{}

func (nextDetector) Tool() model.BuildTool { return model.BuildToolNext }
func (nextDetector) Threshold() float64    { return 0.9 }
func (nextDetector) Specificity() int      { return specificityMetaFw }

func (nextDetector) Detect(signals model.Signals) (float64, []string) {
	var evidence []string
	conf := 0.0

	if src, ok := scriptsContain(signals, "/_next/"); ok {
		conf = 0.9
		evidence = append(evidence, "script:"+src)
	}
	if signals.HasNext {
		if conf > 0 {
			conf = 0.95
		} else {
			conf = 0.9
		}
		evidence = append(evidence, "marker:next")
	}
	return conf, evidence
}

// nuxtDetector recognizes Nuxt output via the /_nuxt/ asset prefix and the
// window.__NUXT__ marker. Threshold provisional, same reasoning as Next.
type nuxtDetector struct{}

func (nuxtDetector) Tool() model.BuildTool { return model.BuildToolNuxt }
func (nuxtDetector) Threshold() float64    { return 0.9 }
func (nuxtDetector) Specificity() int      { return specificityMetaFw }

func (nuxtDetector) Detect(signals model.Signals) (float64, []string) {
	var evidence []string
	conf := 0.0

	if src, ok := scriptsContain(signals, "/_nuxt/"); ok {
		conf = 0.9
		evidence = append(evidence, "script:"+src)
	}
	if signals.HasNuxt {
		if conf > 0 {
			conf = 0.95
		} else {
			conf = 0.9
		}
		evidence = append(evidence, "marker:nuxt")
	}
	return conf, evidence
}

// craDetector recognizes create-react-app via its runtime chunk naming
// (runtime-main.<hash>.js) and static/js output layout.
type craDetector struct{}

func (craDetector) Tool() model.BuildTool { return model.BuildToolCreateReactApp }
func (craDetector) Threshold() float64    { return 0.8 }
func (craDetector) Specificity() int      { return specificityFwCLI }

func (craDetector) Detect(signals model.Signals) (float64, []string) {
	if !signals.HasReact {
		return 0, nil
	}
	var evidence []string
	conf := 0.0

	if src, ok := scriptsContain(signals, "runtime-main"); ok {
		conf = 0.9
		evidence = append(evidence, "script:"+src)
	}
	if src, ok := scriptsContain(signals, "static/js/main."); ok {
		if conf < 0.85 {
			conf = 0.85
		}
		evidence = append(evidence, "script:"+src)
	}
	if conf == 0 {
		if _, ok := scriptsContain(signals, "chunk.js"); ok {
			// React plus anonymous chunk naming: weaker but still CRA-shaped.
			conf = 0.8
			evidence = append(evidence, "marker:react", "script:chunk")
		}
	}
	return conf, evidence
}

// vueCLIDetector recognizes Vue CLI via its chunk-vendors naming, which is
// distinct from other bundlers' runtime-chunk conventions.
type vueCLIDetector struct{}

func (vueCLIDetector) Tool() model.BuildTool { return model.BuildToolVueCLI }
func (vueCLIDetector) Threshold() float64    { return 0.8 }
func (vueCLIDetector) Specificity() int      { return specificityFwCLI }

func (vueCLIDetector) Detect(signals model.Signals) (float64, []string) {
	if !signals.HasVue {
		return 0, nil
	}
	var evidence []string
	conf := 0.0

	if src, ok := scriptsContain(signals, "chunk-vendors"); ok {
		conf = 0.9
		evidence = append(evidence, "script:"+src)
	}
	if _, ok := scriptsContain(signals, "app.js"); ok {
		if conf == 0 {
			conf = 0.8
		}
		evidence = append(evidence, "marker:vue", "script:app")
	}
	if _, ok := scriptsContain(signals, "/js/app."); ok && conf < 0.85 {
		conf = 0.85
		evidence = append(evidence, "script:js-app")
	}
	return conf, evidence
}

// angularDetector recognizes Angular CLI via the runtime/polyfills/main
// script trio and the ng-version attribute marker. Threshold provisional.
type angularDetector struct{}

func (angularDetector) Tool() model.BuildTool { return model.BuildToolAngular }
func (angularDetector) Threshold() float64    { return 0.85 }
func (angularDetector) Specificity() int      { return specificityFwCLI }

func (angularDetector) Detect(signals model.Signals) (float64, []string) {
	var evidence []string

	_, hasRuntime := scriptsContain(signals, "runtime.")
	_, hasPolyfills := scriptsContain(signals, "polyfills.")
	_, hasMain := scriptsContain(signals, "main.")

	if hasRuntime && hasPolyfills && hasMain {
		evidence = append(evidence, "script:runtime", "script:polyfills", "script:main")
		if signals.HasAngular {
			evidence = append(evidence, "marker:ng-version")
			return 0.95, evidence
		}
		return 0.85, evidence
	}
	if signals.HasAngular && hasMain {
		return 0.85, []string{"marker:ng-version", "script:main"}
	}
	return 0, nil
}

// webpackDetector is the loosest match: a bare webpack runtime with no
// framework CLI convention on top. Threshold provisional.
type webpackDetector struct{}

func (webpackDetector) Tool() model.BuildTool { return model.BuildToolWebpack }
func (webpackDetector) Threshold() float64    { return 0.8 }
func (webpackDetector) Specificity() int      { return specificityGenericWp }

func (webpackDetector) Detect(signals model.Signals) (float64, []string) {
	if src, ok := scriptsContain(signals, "webpack"); ok {
		return 0.8, []string{"script:" + src}
	}
	if strings.Contains(strings.ToLower(signals.MetaGenerator), "webpack") {
		return 0.8, []string{"meta:" + signals.MetaGenerator}
	}
	return 0, nil
}
