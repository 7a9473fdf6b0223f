package main

import (
	_ "embed"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

type Owner struct {
	Name      string   `yaml:"name"`
	Initials  string   `yaml:"initials"`
	Headline  string   `yaml:"headline"`
	Tagline   string   `yaml:"tagline"`
	Summary   string   `yaml:"summary"`
	Status    string   `yaml:"status"`
	Location  string   `yaml:"location"`
	WorkModes []string `yaml:"workModes"`
}

// NavigationItem links a header label to the id of a page section.
type NavigationItem struct {
	Label  string `yaml:"label"`
	Target string `yaml:"target"`
}

type Stat struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

type Achievement struct {
	Text    string   `yaml:"text"`
	Metrics []string `yaml:"metrics"`
}

type ExperienceEntry struct {
	Company      string        `yaml:"company"`
	Role         string        `yaml:"role"`
	Location     string        `yaml:"location"`
	Duration     string        `yaml:"duration"`
	Status       string        `yaml:"status"`
	Achievements []Achievement `yaml:"achievements"`
	Tags         []string      `yaml:"tags"`
}

// SkillItem is either a bare label or a label with a proficiency
// percentage. Proficiency is zero for bare labels.
type SkillItem struct {
	Label       string `yaml:"label"`
	Proficiency int    `yaml:"level"`
}

// HasProficiency reports whether the item carries a percentage bar.
func (s SkillItem) HasProficiency() bool { return s.Proficiency > 0 }

// UnmarshalYAML accepts both `- Dart` and `- { label: Dart, level: 95 }`.
func (s *SkillItem) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Label = node.Value
		s.Proficiency = 0
		return nil
	}

	type plain SkillItem
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if p.Proficiency < 0 || p.Proficiency > 100 {
		return errors.Errorf("line %d: skill %q has proficiency %d outside 0-100", node.Line, p.Label, p.Proficiency)
	}
	*s = SkillItem(p)
	return nil
}

type SkillCategory struct {
	Name  string      `yaml:"name"`
	Icon  string      `yaml:"icon"`
	Items []SkillItem `yaml:"items"`
}

type ProjectEntry struct {
	Name        string   `yaml:"name"`
	Subtitle    string   `yaml:"subtitle"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Category    string   `yaml:"category"`
	Featured    bool     `yaml:"featured"`
}

type EducationEntry struct {
	Degree      string `yaml:"degree"`
	Institution string `yaml:"institution"`
	Duration    string `yaml:"duration"`
	Grade       string `yaml:"grade"`
	Percentage  int    `yaml:"percentage"`
}

type CertificationEntry struct {
	Name        string `yaml:"name"`
	Provider    string `yaml:"provider"`
	Description string `yaml:"description"`
	Date        string `yaml:"date"`
	Verified    bool   `yaml:"verified"`
}

type FooterGroup struct {
	Group string       `yaml:"group"`
	Links []FooterLink `yaml:"links"`
}

// Content is everything rendered on the page. It is never mutated after
// loading; a reload swaps in a new value.
type Content struct {
	Owner          Owner                `yaml:"owner"`
	Navigation     []NavigationItem     `yaml:"navigation"`
	Roles          []string             `yaml:"roles"`
	Stats          []Stat               `yaml:"stats"`
	Experience     []ExperienceEntry    `yaml:"experience"`
	Skills         []SkillCategory      `yaml:"skills"`
	Projects       []ProjectEntry       `yaml:"projects"`
	Education      []EducationEntry     `yaml:"education"`
	Certifications []CertificationEntry `yaml:"certifications"`
	Channels       []ContactChannel     `yaml:"channels"`
	Footer         []FooterGroup        `yaml:"footer"`
}

// ParseContent decodes and validates a content document.
func ParseContent(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse content")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadContent reads the override file at path, or the embedded default when
// path is empty.
func LoadContent(path string) (*Content, error) {
	if path == "" {
		return ParseContent(defaultContent)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read content file: %s", path)
	}
	c, err := ParseContent(data)
	if err != nil {
		return nil, errors.Wrapf(err, "content file %s", path)
	}
	return c, nil
}

func (c *Content) validate() error {
	if len(c.Navigation) == 0 {
		return errors.New("content has no navigation entries")
	}
	if len(c.Roles) == 0 {
		return errors.New("content has no hero roles")
	}
	for i, r := range c.Roles {
		if r == "" {
			return errors.Errorf("hero role %d is empty", i)
		}
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if seen[ch.Key] {
			return errors.Errorf("duplicate contact channel %q", ch.Key)
		}
		seen[ch.Key] = true
		if _, err := ch.Href(); err != nil {
			return err
		}
	}
	for _, g := range c.Footer {
		for _, l := range g.Links {
			if err := l.Validate(); err != nil {
				return err
			}
		}
	}
	for _, e := range c.Education {
		if e.Percentage < 0 || e.Percentage > 100 {
			return errors.Errorf("education %q has percentage %d outside 0-100", e.Degree, e.Percentage)
		}
	}
	return nil
}

// Channel returns the contact channel with the given key.
func (c *Content) Channel(key string) (ContactChannel, bool) {
	for _, ch := range c.Channels {
		if ch.Key == key {
			return ch, true
		}
	}
	return ContactChannel{}, false
}

// ContentStore hands out the current content and lets a watcher swap it.
type ContentStore struct {
	mu      sync.RWMutex
	content *Content
}

func NewContentStore(c *Content) *ContentStore {
	return &ContentStore{content: c}
}

func (s *ContentStore) Get() *Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

func (s *ContentStore) Set(c *Content) {
	s.mu.Lock()
	s.content = c
	s.mu.Unlock()
}
