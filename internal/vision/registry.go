package vision

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	// Register decoders for matcher assets.
	_ "image/png"

	_ "golang.org/x/image/webp"

	"gopkg.in/yaml.v3"
)

// MatcherSpec is one matcher definition as loaded from YAML. Exactly one
// of the type-specific sections applies, selected by Type.
type MatcherSpec struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"` // hash, hsv, hsv_ratio, rgb, uniform, brightness, template, edge
	ROI       Rect     `yaml:"roi"`
	Mask      string   `yaml:"mask"`      // optional grayscale mask image, relative to asset dir
	Threshold float64  `yaml:"threshold"` // pass threshold where the type uses one
	Digest    string   `yaml:"digest"`    // hash: reference digest
	HSV       HSVRange `yaml:"hsv"`       // hsv, hsv_ratio: inclusive range
	Reference string   `yaml:"reference"` // rgb: reference image
	Template  string   `yaml:"template"`  // template, edge: template image
	HueStdDev float64  `yaml:"hue_stddev"`
	MinValue  int      `yaml:"min_value"`
	MaxValue  int      `yaml:"max_value"`
}

// CompositeSpec names a boolean combination of other matchers.
type CompositeSpec struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

// GroupSpec is an ordered list of matcher keys. Order is significant:
// matched-name lookups return the first passing member.
type GroupSpec struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// registryFile is the shape of one matcher YAML file.
type registryFile struct {
	Matchers   []MatcherSpec   `yaml:"matchers"`
	Composites []CompositeSpec `yaml:"composites"`
	Groups     []GroupSpec     `yaml:"groups"`
}

// CompositeMatcher evaluates a MatchExpression by delegating leaf lookups
// to the registry.
type CompositeMatcher struct {
	name string
	expr MatchExpression
	reg  *Registry
}

func (m *CompositeMatcher) Name() string { return m.name }

func (m *CompositeMatcher) Match(f *Frame) bool {
	return m.expr.Eval(func(key string) bool { return m.reg.Match(key, f) })
}

// Registry holds every named matcher, composite and group. It is
// immutable after load and safe for concurrent readers.
type Registry struct {
	matchers   map[string]Matcher
	composites map[string]*CompositeMatcher
	groups     map[string][]Matcher
	sealed     bool
}

// NewRegistry creates an empty, unsealed registry. Production code loads
// one via LoadRegistry; tests register matchers directly.
func NewRegistry() *Registry {
	return &Registry{
		matchers:   make(map[string]Matcher),
		composites: make(map[string]*CompositeMatcher),
		groups:     make(map[string][]Matcher),
	}
}

// Register adds a leaf matcher. Must happen before Seal.
func (r *Registry) Register(m Matcher) error {
	if r.sealed {
		panic("vision: registry mutated after seal")
	}
	if _, dup := r.matchers[m.Name()]; dup {
		return fmt.Errorf("duplicate matcher %q", m.Name())
	}
	r.matchers[m.Name()] = m
	return nil
}

// RegisterComposite adds a composite matcher from an expression string.
func (r *Registry) RegisterComposite(name, expression string) error {
	if r.sealed {
		panic("vision: registry mutated after seal")
	}
	expr, err := ParseExpression(expression)
	if err != nil {
		return fmt.Errorf("composite %q: %w", name, err)
	}
	if _, dup := r.composites[name]; dup {
		return fmt.Errorf("duplicate composite %q", name)
	}
	r.composites[name] = &CompositeMatcher{name: name, expr: expr, reg: r}
	return nil
}

// RegisterGroup adds an ordered group of existing matcher keys.
func (r *Registry) RegisterGroup(name string, members []string) error {
	if r.sealed {
		panic("vision: registry mutated after seal")
	}
	ms := make([]Matcher, 0, len(members))
	for _, key := range members {
		m, ok := r.matchers[key]
		if !ok {
			return fmt.Errorf("group %q references unknown matcher %q", name, key)
		}
		ms = append(ms, m)
	}
	if _, dup := r.groups[name]; dup {
		return fmt.Errorf("duplicate group %q", name)
	}
	r.groups[name] = ms
	return nil
}

// Seal verifies composite references and freezes the registry. Any
// mutation after Seal is a programming error and panics.
func (r *Registry) Seal() error {
	for name, c := range r.composites {
		for _, key := range c.expr.Keys(nil) {
			if _, ok := r.matchers[key]; ok {
				continue
			}
			if _, ok := r.composites[key]; ok {
				continue
			}
			return fmt.Errorf("composite %q references unknown matcher %q", name, key)
		}
	}
	r.sealed = true
	return nil
}

// Match evaluates the named matcher or composite against the frame.
// Unknown keys are false, never errors: a missing detection must not
// take down the frame loop.
func (r *Registry) Match(key string, f *Frame) bool {
	if c, ok := r.composites[key]; ok {
		return c.Match(f)
	}
	if m, ok := r.matchers[key]; ok {
		return m.Match(f)
	}
	return false
}

// Has reports whether a matcher, composite or group with the key exists.
func (r *Registry) Has(key string) bool {
	if _, ok := r.matchers[key]; ok {
		return true
	}
	if _, ok := r.composites[key]; ok {
		return true
	}
	_, ok := r.groups[key]
	return ok
}

// MatchedName returns the display name of the first group member whose
// matcher passes, in the group's declared order.
func (r *Registry) MatchedName(group string, f *Frame) (string, bool) {
	for _, m := range r.groups[group] {
		if m.Match(f) {
			return m.Name(), true
		}
	}
	return "", false
}

// GroupNames lists the configured groups, sorted for stable output.
func (r *Registry) GroupNames() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadRegistry reads every *.yaml file in configDir, resolving image
// assets against assetDir, and returns a sealed registry. Any
// misconfiguration is a hard failure: the daemon must not start with a
// partial screen vocabulary.
func LoadRegistry(configDir, assetDir string) (*Registry, error) {
	entries, err := filepath.Glob(filepath.Join(configDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing matcher configs: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no matcher configs found in %s", configDir)
	}
	sort.Strings(entries)

	reg := NewRegistry()
	var files []registryFile
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var file registryFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		files = append(files, file)
	}

	// Leaves first, then composites, then groups, so references resolve
	// regardless of file order.
	for _, file := range files {
		for _, spec := range file.Matchers {
			m, err := buildMatcher(spec, assetDir)
			if err != nil {
				return nil, err
			}
			if err := reg.Register(m); err != nil {
				return nil, err
			}
		}
	}
	for _, file := range files {
		for _, spec := range file.Composites {
			if err := reg.RegisterComposite(spec.Name, spec.Expression); err != nil {
				return nil, err
			}
		}
	}
	for _, file := range files {
		for _, spec := range file.Groups {
			if err := reg.RegisterGroup(spec.Name, spec.Members); err != nil {
				return nil, err
			}
		}
	}

	if err := reg.Seal(); err != nil {
		return nil, err
	}
	return reg, nil
}

// buildMatcher constructs one matcher from its spec.
func buildMatcher(spec MatcherSpec, assetDir string) (Matcher, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("matcher with empty name (type %q)", spec.Type)
	}

	var mask *Gray
	if spec.Mask != "" {
		var err error
		mask, err = loadGrayAsset(assetDir, spec.Mask)
		if err != nil {
			return nil, fmt.Errorf("matcher %q: %w", spec.Name, err)
		}
	}

	switch spec.Type {
	case "hash":
		if spec.Digest == "" {
			return nil, fmt.Errorf("hash matcher %q requires a digest", spec.Name)
		}
		return NewHashMatcher(spec.Name, spec.ROI, spec.Digest), nil
	case "hsv":
		return NewHSVMatcher(spec.Name, spec.ROI, spec.HSV, spec.Threshold, mask), nil
	case "hsv_ratio":
		return NewHSVRatioMatcher(spec.Name, spec.ROI, spec.HSV, spec.Threshold), nil
	case "rgb":
		ref, err := loadFrameAsset(assetDir, spec.Reference)
		if err != nil {
			return nil, fmt.Errorf("matcher %q: %w", spec.Name, err)
		}
		return NewRGBMatcher(spec.Name, spec.ROI, ref, spec.Threshold, mask)
	case "uniform":
		return NewUniformColorMatcher(spec.Name, spec.ROI, spec.HueStdDev, mask), nil
	case "brightness":
		minV, maxV := spec.MinValue, spec.MaxValue
		if maxV == 0 {
			maxV = -1
		}
		return NewBrightnessMatcher(spec.Name, spec.ROI, minV, maxV, mask), nil
	case "template":
		tpl, err := loadGrayAsset(assetDir, spec.Template)
		if err != nil {
			return nil, fmt.Errorf("matcher %q: %w", spec.Name, err)
		}
		return NewTemplateMatcher(spec.Name, spec.ROI, tpl, spec.Threshold, mask), nil
	case "edge":
		tpl, err := loadGrayAsset(assetDir, spec.Template)
		if err != nil {
			return nil, fmt.Errorf("matcher %q: %w", spec.Name, err)
		}
		return NewEdgeMatcher(spec.Name, spec.ROI, tpl, spec.Threshold), nil
	default:
		return nil, fmt.Errorf("matcher %q has unknown type %q", spec.Name, spec.Type)
	}
}

// LoadFrameImage decodes an image file into a BGR frame.
func LoadFrameImage(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return FrameFromImage(img), nil
}

// LoadGrayImage decodes an image file into a grayscale image.
func LoadGrayImage(path string) (*Gray, error) {
	f, err := LoadFrameImage(path)
	if err != nil {
		return nil, err
	}
	return f.Gray(), nil
}

func loadFrameAsset(assetDir, rel string) (*Frame, error) {
	if rel == "" {
		return nil, fmt.Errorf("missing reference image path")
	}
	return LoadFrameImage(filepath.Join(assetDir, rel))
}

func loadGrayAsset(assetDir, rel string) (*Gray, error) {
	if rel == "" {
		return nil, fmt.Errorf("missing template/mask image path")
	}
	return LoadGrayImage(filepath.Join(assetDir, rel))
}
