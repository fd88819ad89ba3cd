package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/weight-merge/internal/reconcile"
	"github.com/ginjaninja78/weight-merge/internal/tabular"
)

// DefaultProfileName names the built-in profile.
const DefaultProfileName = "default"

// =============================================================================
// PROFILE STRUCTURE
// =============================================================================

// Profile describes how one family of exports is read and merged. Each
// file in the profiles directory holds one profile.
type Profile struct {
	// Name identifies the profile on the command line and in the HTTP API.
	// Defaults to the file name without extension.
	Name string `yaml:"name"`

	// FileMatchingPatterns are glob patterns tested against the sales file
	// name (case-insensitive). The first profile with a matching pattern is
	// used when no profile is named explicitly.
	//
	// Examples:
	//   - "sales_*.csv"
	//   - "*_monthly_export.xlsx"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Sales and Weights describe the two inputs.
	Sales   InputSettings `yaml:"sales"`
	Weights InputSettings `yaml:"weights"`

	// RequiredFields are the sales fields a row must carry. Omit to require
	// all six; Product, Item, Quantity and Date are always required.
	RequiredFields []string `yaml:"required_fields"`

	// DuplicatePolicy is "multiply" (default), "reject" or "first".
	DuplicatePolicy string `yaml:"duplicate_policy"`

	// Banner writes the title and filter block above XLSX reports.
	// Default: true
	Banner *bool `yaml:"banner"`

	// DateLayouts are Go time layouts tried before giving up on a date.
	// Omit to use the built-in month-first list.
	DateLayouts []string `yaml:"date_layouts"`

	// Path is the file the profile was loaded from.
	Path string `yaml:"-"`
}

// InputSettings describe how one input file is decoded.
type InputSettings struct {
	// HeaderRow is the 0-based row holding column names.
	// Default: 1 for sales, 0 for weights.
	HeaderRow *int `yaml:"header_row"`

	// Delimiter: ",", ";", "|", "tab", "auto" or any single character.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding of CSV input, e.g. "UTF-8", "ISO-8859-1", "Windows-1252".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// SheetName selects the worksheet of an XLSX input.
	// Default: the first sheet.
	SheetName string `yaml:"sheet_name"`

	// Aliases map canonical column names to alternative header spellings.
	//
	// Example:
	//   aliases:
	//     Quantity: ["Qty", "Units Sold"]
	Aliases map[string][]string `yaml:"aliases"`
}

// =============================================================================
// PROFILE LOADING
// =============================================================================

// DefaultProfile returns the built-in profile: sales header on the second
// row, weights header on the first, all fields required, duplicates
// multiplied, banner on.
func DefaultProfile() *Profile {
	p := &Profile{Name: DefaultProfileName}
	applyProfileDefaults(p)
	return p
}

// LoadProfiles loads every *.yaml and *.yml file in dir, ordered by file
// name. A missing directory yields no profiles.
func LoadProfiles(dir string) ([]*Profile, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	profiles := make([]*Profile, 0, len(files))
	seen := make(map[string]string)
	for _, file := range files {
		p, err := LoadProfile(file)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(p.Name)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("profile %q defined in both %s and %s", p.Name, prev, file)
		}
		seen[key] = file
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// LoadProfile loads and validates a single profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	p.Path = path
	applyProfileDefaults(&p)

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return &p, nil
}

func applyProfileDefaults(p *Profile) {
	if p.Sales.HeaderRow == nil {
		p.Sales.HeaderRow = intPtr(1)
	}
	if p.Weights.HeaderRow == nil {
		p.Weights.HeaderRow = intPtr(0)
	}
	if p.DuplicatePolicy == "" {
		p.DuplicatePolicy = string(reconcile.DuplicateMultiply)
	}
	if p.Banner == nil {
		on := true
		p.Banner = &on
	}
}

// Validate checks the profile against what the pipeline and decoders accept.
func (p *Profile) Validate() error {
	for _, in := range []struct {
		name string
		s    InputSettings
	}{{"sales", p.Sales}, {"weights", p.Weights}} {
		if _, err := tabular.LookupEncoding(in.s.Encoding); err != nil {
			return fmt.Errorf("%s: %w", in.name, err)
		}
		if in.s.Delimiter != "" && len([]rune(in.s.Delimiter)) != 1 {
			switch strings.ToLower(in.s.Delimiter) {
			case "tab", "auto", "pipe", "semicolon", `\t`:
			default:
				return fmt.Errorf("%s: delimiter %q must be a single character, \"tab\" or \"auto\"", in.name, in.s.Delimiter)
			}
		}
	}
	for _, pattern := range p.FileMatchingPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("bad file pattern %q: %w", pattern, err)
		}
	}
	return p.Options().Validate()
}

// Warnings lists settings that are valid but unusual.
func (p *Profile) Warnings() []string {
	var out []string
	if p.Sales.HeaderRow != nil && *p.Sales.HeaderRow > 1 {
		out = append(out, fmt.Sprintf("sales header row %d skips %d leading row(s)", *p.Sales.HeaderRow, *p.Sales.HeaderRow))
	}
	if p.Weights.HeaderRow != nil && *p.Weights.HeaderRow > 1 {
		out = append(out, fmt.Sprintf("weights header row %d skips %d leading row(s)", *p.Weights.HeaderRow, *p.Weights.HeaderRow))
	}
	return out
}

// =============================================================================
// PROFILE SELECTION
// =============================================================================

// Matches reports whether fileName matches one of the profile's patterns.
func (p *Profile) Matches(fileName string) bool {
	base := strings.ToLower(filepath.Base(fileName))
	for _, pattern := range p.FileMatchingPatterns {
		if ok, _ := filepath.Match(strings.ToLower(pattern), base); ok {
			return true
		}
	}
	return false
}

// Select picks the profile for a run. An explicit name wins; "default"
// always resolves, to a loaded profile of that name or the built-in one.
// Without a name, the first profile whose patterns match salesFile is
// used, falling back to the default.
func Select(profiles []*Profile, name, salesFile string) (*Profile, error) {
	if name != "" {
		for _, p := range profiles {
			if strings.EqualFold(p.Name, name) {
				return p, nil
			}
		}
		if strings.EqualFold(name, DefaultProfileName) {
			return DefaultProfile(), nil
		}
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	if salesFile != "" {
		for _, p := range profiles {
			if p.Matches(salesFile) {
				return p, nil
			}
		}
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Name, DefaultProfileName) {
			return p, nil
		}
	}
	return DefaultProfile(), nil
}

// =============================================================================
// CONVERSION
// =============================================================================

// Options converts the profile to pipeline options.
func (p *Profile) Options() reconcile.Options {
	opts := reconcile.DefaultOptions()
	if p.Sales.HeaderRow != nil {
		opts.SalesHeaderRow = *p.Sales.HeaderRow
	}
	if p.Weights.HeaderRow != nil {
		opts.WeightsHeaderRow = *p.Weights.HeaderRow
	}
	opts.SalesAliases = p.Sales.Aliases
	opts.WeightAliases = p.Weights.Aliases
	if p.RequiredFields != nil {
		opts.RequiredFields = p.RequiredFields
	}
	if p.DuplicatePolicy != "" {
		opts.DuplicatePolicy = reconcile.DuplicatePolicy(strings.ToLower(p.DuplicatePolicy))
	}
	opts.DateLayouts = p.DateLayouts
	return opts
}

// SalesSettings returns the decoder settings for the sales input.
func (p *Profile) SalesSettings() tabular.Settings {
	return p.Sales.settings()
}

// WeightSettings returns the decoder settings for the weights input.
func (p *Profile) WeightSettings() tabular.Settings {
	return p.Weights.settings()
}

// BannerEnabled reports whether XLSX reports get the title block.
func (p *Profile) BannerEnabled() bool {
	return p.Banner == nil || *p.Banner
}

func (s InputSettings) settings() tabular.Settings {
	return tabular.Settings{
		Delimiter: s.Delimiter,
		Encoding:  s.Encoding,
		SheetName: s.SheetName,
	}
}

func intPtr(v int) *int {
	return &v
}
