package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"mercator-hq/rulesengine/pkg/rules"
)

// MaxFileSize is the largest rules file LoadFile accepts.
const MaxFileSize int64 = 10 * 1024 * 1024

// Extensions lists the file extensions treated as rule files.
var Extensions = []string{".yaml", ".yml"}

// Bundle is a set of rule and group definitions read from one or more files.
type Bundle struct {
	Rules  []*rules.BusinessRule `yaml:"rules"`
	Groups []*rules.RuleGroup    `yaml:"groups"`

	// Files lists the files the bundle was read from, in load order.
	Files []string `yaml:"-"`
}

// LoadFile reads a single rules document.
func LoadFile(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, &LoadError{Path: path, Message: "file not found", Cause: err}
		case errors.Is(err, fs.ErrPermission):
			return nil, &LoadError{Path: path, Message: "permission denied", Cause: err}
		default:
			return nil, &LoadError{Path: path, Message: "failed to access file", Cause: err}
		}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Message: "not a regular file"}
	}
	if info.Size() > MaxFileSize {
		return nil, &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{Path: path, Message: "file contains invalid UTF-8 encoding"}
	}

	bundle, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "YAML parsing failed", Cause: err}
	}
	bundle.Files = []string{path}
	return bundle, nil
}

// Parse decodes a rules document. Unknown keys are rejected so that typos
// in field names surface as errors instead of silently dropped settings.
func Parse(data []byte) (*Bundle, error) {
	bundle := &Bundle{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(bundle); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return bundle, nil
}

// LoadDir loads every rule file below dir, skipping hidden files and
// directories. Files are read in lexical order. Any file that fails to load
// fails the whole directory; the returned error lists every failure.
func LoadDir(dir string) (*Bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: dir, Message: "directory not found", Cause: err}
		}
		return nil, &LoadError{Path: dir, Message: "failed to access directory", Cause: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Path: dir, Message: "not a directory"}
	}

	files, err := collectRuleFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &LoadError{Path: dir, Message: "no rule files found in directory"}
	}

	bundle := &Bundle{}
	var errs []error
	for _, path := range files {
		b, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bundle.Merge(b)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return bundle, nil
}

// Load loads path as a directory or as a single file.
func Load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// Merge appends other's definitions to b.
func (b *Bundle) Merge(other *Bundle) {
	b.Rules = append(b.Rules, other.Rules...)
	b.Groups = append(b.Groups, other.Groups...)
	b.Files = append(b.Files, other.Files...)
}

// Validate checks every definition in the bundle. Rules and groups need an
// explicit id so that repeated syncs address the same stored entity, ids
// must be unique, and group members must be defined in the bundle.
func (b *Bundle) Validate() error {
	var errs []error
	ruleIDs := make(map[string]bool, len(b.Rules))

	for i, rule := range b.Rules {
		if rule == nil {
			errs = append(errs, &rules.ValidationError{Errors: []string{fmt.Sprintf("rules[%d] is empty", i)}})
			continue
		}
		if strings.TrimSpace(rule.ID) == "" {
			errs = append(errs, &rules.ValidationError{Errors: []string{fmt.Sprintf("rules[%d] (%s): id is required", i, rule.Name)}})
			continue
		}
		if ruleIDs[rule.ID] {
			errs = append(errs, &rules.ValidationError{RuleID: rule.ID, Errors: []string{"duplicate rule id"}})
			continue
		}
		ruleIDs[rule.ID] = true

		// A missing status is filled in when the rule is synced.
		candidate := rule.Clone()
		if candidate.Status == "" {
			candidate.Status = rules.StatusDraft
		}
		if err := rules.ValidateRule(candidate); err != nil {
			errs = append(errs, err)
		}
	}

	groupIDs := make(map[string]bool, len(b.Groups))
	for i, group := range b.Groups {
		if group == nil {
			errs = append(errs, &rules.ValidationError{Errors: []string{fmt.Sprintf("groups[%d] is empty", i)}})
			continue
		}
		if strings.TrimSpace(group.ID) == "" {
			errs = append(errs, &rules.ValidationError{Errors: []string{fmt.Sprintf("groups[%d] (%s): id is required", i, group.Name)}})
			continue
		}
		if groupIDs[group.ID] {
			errs = append(errs, &rules.ValidationError{Errors: []string{fmt.Sprintf("group %s: duplicate group id", group.ID)}})
			continue
		}
		groupIDs[group.ID] = true

		if err := rules.ValidateGroup(group); err != nil {
			errs = append(errs, err)
		}
		for _, id := range group.RuleIDs {
			if !ruleIDs[id] {
				errs = append(errs, &rules.ValidationError{Errors: []string{
					fmt.Sprintf("group %s: member %s is not defined", group.ID, id),
				}})
			}
		}
	}

	return errors.Join(errs...)
}

// collectRuleFiles returns the rule files below dir in lexical order.
func collectRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasRuleExtension(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &LoadError{Path: dir, Message: "failed to walk directory", Cause: err}
	}
	sort.Strings(files)
	return files, nil
}

func hasRuleExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range Extensions {
		if ext == valid {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
