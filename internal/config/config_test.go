package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/weight-merge/internal/reconcile"
	"github.com/ginjaninja78/weight-merge/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.OutputDir != "./output" || c.DefaultFormat != "xlsx" || c.CSVPrecision != -1 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.OutputNameFormat != "final_merged_{timestamp}.{format}" {
		t.Fatalf("unexpected name format %q", c.OutputNameFormat)
	}
	if c.Server.Addr != ":8080" || c.Server.MaxUploadMB != 32 {
		t.Fatalf("unexpected server defaults: %+v", c.Server)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
output_dir: /srv/reports
default_format: csv
csv_precision: 3
server:
  addr: 127.0.0.1:9000
`)
	t.Setenv("WEIGHTMERGE_LOG_LEVEL", "debug")
	t.Setenv("WEIGHTMERGE_SERVER_MAX_UPLOAD_MB", "8")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.OutputDir != "/srv/reports" || c.DefaultFormat != "csv" || c.CSVPrecision != 3 {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected nested addr, got %q", c.Server.Addr)
	}
	if c.LogLevel != "debug" || c.Server.MaxUploadMB != 8 {
		t.Fatalf("env overrides not applied: level=%q max=%d", c.LogLevel, c.Server.MaxUploadMB)
	}
	if c.InputDir != "./input" {
		t.Fatalf("expected default input dir, got %q", c.InputDir)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "default_format: parquet\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "default_format") {
		t.Fatalf("expected default_format error, got %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for explicit missing file")
	}
}

func TestFileManager(t *testing.T) {
	root := t.TempDir()
	c := Default()
	c.InputDir = filepath.Join(root, "in")
	c.OutputDir = filepath.Join(root, "out", "nested")
	c.InputArchiveDir = filepath.Join(root, "archive")

	fm := c.FileManager()
	if fm.InputArchiveDir != "" || fm.UseTimestampSubdirs {
		t.Fatalf("expected no archive without archive_inputs, got %+v", fm)
	}
	if err := fm.EnsureDirectories(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := os.Stat(c.InputArchiveDir); !os.IsNotExist(err) {
		t.Fatalf("archive dir must not be created when archiving is off")
	}

	c.ArchiveInputs = true
	c.ArchiveTimestampSubdirs = true
	fm = c.FileManager()
	if fm.InputArchiveDir != c.InputArchiveDir || !fm.UseTimestampSubdirs {
		t.Fatalf("expected archive settings to carry over, got %+v", fm)
	}
	if err := fm.EnsureDirectories(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, d := range []string{c.InputDir, c.OutputDir, c.InputArchiveDir} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s", d)
		}
	}
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b_regional.yaml"), `
name: regional
file_matching_patterns: ["regional_*.csv"]
sales:
  header_row: 0
  delimiter: ";"
  encoding: Windows-1252
  aliases:
    Quantity: ["Qty"]
required_fields: [Product, Item, Quantity, Date]
duplicate_policy: reject
banner: false
`)
	writeFile(t, filepath.Join(dir, "a_plain.yml"), "file_matching_patterns: [\"*.xlsx\"]\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	profiles, err := LoadProfiles(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Name != "a_plain" {
		t.Fatalf("expected file name as profile name, got %q", profiles[0].Name)
	}

	regional := profiles[1]
	opts := regional.Options()
	if opts.SalesHeaderRow != 0 || opts.WeightsHeaderRow != 0 {
		t.Fatalf("unexpected header rows: %+v", opts)
	}
	if opts.DuplicatePolicy != reconcile.DuplicateReject {
		t.Fatalf("expected reject policy, got %q", opts.DuplicatePolicy)
	}
	if len(opts.RequiredFields) != 4 || opts.SalesAliases[types.ColQuantity][0] != "Qty" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if regional.BannerEnabled() {
		t.Fatalf("expected banner off")
	}
	if s := regional.SalesSettings(); s.Delimiter != ";" || s.Encoding != "Windows-1252" {
		t.Fatalf("unexpected sales settings: %+v", s)
	}

	plain := profiles[0].Options()
	if plain.SalesHeaderRow != 1 || plain.DuplicatePolicy != reconcile.DuplicateMultiply || len(plain.RequiredFields) != 6 {
		t.Fatalf("expected default options, got %+v", plain)
	}
}

func TestLoadProfilesMissingDir(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "none"))
	if err != nil || profiles != nil {
		t.Fatalf("expected no profiles and no error, got %v %v", profiles, err)
	}
}

func TestLoadProfileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"policy", "duplicate_policy: merge\n", "duplicate policy"},
		{"encoding", "sales:\n  encoding: ebcdic\n", "encoding"},
		{"header row", "weights:\n  header_row: -2\n", "header rows"},
		{"field", "required_fields: [Colour]\n", "Colour"},
		{"delimiter", "sales:\n  delimiter: ab\n", "delimiter"},
		{"pattern", "file_matching_patterns: [\"[\"]\n", "pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "p.yaml")
			writeFile(t, path, tt.content)
			_, err := LoadProfile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadProfilesDuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.yaml"), "name: Shared\n")
	writeFile(t, filepath.Join(dir, "two.yaml"), "name: shared\n")
	if _, err := LoadProfiles(dir); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestSelect(t *testing.T) {
	east := &Profile{Name: "east", FileMatchingPatterns: []string{"EAST_*.csv"}}
	west := &Profile{Name: "west", FileMatchingPatterns: []string{"west_*"}}
	profiles := []*Profile{east, west}

	tests := []struct {
		name, profile, file, want string
	}{
		{"explicit", "WEST", "east_jan.csv", "west"},
		{"pattern case-insensitive", "", "/data/east_jan.csv", "east"},
		{"second pattern", "", "west_feb.xlsx", "west"},
		{"fallback", "", "north.csv", DefaultProfileName},
		{"explicit default", "default", "east_jan.csv", DefaultProfileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Select(profiles, tt.profile, tt.file)
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if p.Name != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, p.Name)
			}
		})
	}

	if _, err := Select(profiles, "south", ""); err == nil {
		t.Fatalf("expected unknown profile error")
	}
}

func TestProfileWarnings(t *testing.T) {
	p := DefaultProfile()
	if len(p.Warnings()) != 0 {
		t.Fatalf("expected no warnings for default profile")
	}
	p.Sales.HeaderRow = intPtr(3)
	if len(p.Warnings()) != 1 {
		t.Fatalf("expected header row warning")
	}
}
