package domain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError signals a malformed or incomplete domain configuration. It is
// fatal at load time: the engine refuses to start or reload on one, and no
// partially-valid configuration is ever returned.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return "domain config: " + e.Detail
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}

// BoostTerm is one weighted term or phrase in an endpoint's intent signature.
type BoostTerm struct {
	Term   string  `yaml:"term" json:"term"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// EndpointDescriptor describes one downstream analysis pipeline. Descriptors
// are created at configuration load time and immutable for the process
// lifetime; reload replaces the whole Config, never an individual descriptor.
type EndpointDescriptor struct {
	ID             string      `yaml:"id" json:"id"`
	BoostTerms     []BoostTerm `yaml:"boost_terms" json:"boost_terms"`
	MinConfidence  float64     `yaml:"min_confidence" json:"min_confidence"`
	PriorityRank   int         `yaml:"priority_rank" json:"priority_rank"`
	Comparative    bool        `yaml:"comparative" json:"comparative,omitempty"`
	RequiredFields []string    `yaml:"required_fields" json:"required_fields"`
}

// MaxSignatureScore is the highest raw score the intent signature alone can
// produce: every term matched as a contiguous phrase.
func (e *EndpointDescriptor) MaxSignatureScore(phraseBonus float64) float64 {
	var max float64
	for _, bt := range e.BoostTerms {
		max += bt.Weight * phraseBonus
	}
	return max
}

// Entity is a named brand or place with its canonical identifier. For places
// the ID is an administrative code.
type Entity struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
}

type entitySection struct {
	Brands []Entity `yaml:"brands"`
	Places []Entity `yaml:"places"`
}

// entityRef is a resolved dictionary entry: canonical id plus kind.
type entityRef struct {
	ID   string
	Kind string // types.EntityBrand / types.EntityPlace values
}

// Config is the full domain configuration: synonym dictionary, entity
// dictionaries, and the ordered endpoint set. It is read-only after Load;
// concurrent queries share a single snapshot (see Store).
type Config struct {
	Version      string               `yaml:"version"`
	Synonyms     map[string][]string  `yaml:"synonyms"`
	Stopwords    []string             `yaml:"stopwords"`
	Entities     entitySection        `yaml:"entities"`
	FieldAliases map[string][]string  `yaml:"field_aliases"`
	Endpoints    []EndpointDescriptor `yaml:"endpoints"`
	Inventory    map[string][]string  `yaml:"inventory"`

	// Derived lookup structures, built once by finish().
	synonymIndex  map[string]string    // lowercased variant -> canonical term
	entityIndex   map[string]entityRef // lowercased name/alias -> entity
	fieldIndex    map[string]string    // lowercased field alias -> field name
	vocabulary    map[string]struct{}  // lowercased domain tokens
	stopwordSet   map[string]struct{}
	endpointsByID map[string]*EndpointDescriptor
	maxEntityLen  int // longest entity name/alias, in tokens
	maxSynonymLen int // longest synonym variant, in tokens
}

// Load reads, validates, and indexes a domain configuration document. It
// either returns a fully-valid Config or a *ConfigError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("read %s: %v", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML. Exposed separately so tests and
// blob-backed sources can bypass the filesystem.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, configErrorf("parse: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.finish()
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Endpoints) == 0 {
		return configErrorf("no endpoints defined")
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.ID == "" {
			return configErrorf("endpoint %d has an empty id", i)
		}
		if seen[ep.ID] {
			return configErrorf("duplicate endpoint id %q", ep.ID)
		}
		seen[ep.ID] = true
		if len(ep.BoostTerms) == 0 {
			return configErrorf("endpoint %q has an empty intent signature", ep.ID)
		}
		for _, bt := range ep.BoostTerms {
			if strings.TrimSpace(bt.Term) == "" {
				return configErrorf("endpoint %q has a blank boost term", ep.ID)
			}
			if bt.Weight <= 0 {
				return configErrorf("endpoint %q term %q has non-positive weight %v", ep.ID, bt.Term, bt.Weight)
			}
		}
		if ep.MinConfidence <= 0 || ep.MinConfidence > 1 {
			return configErrorf("endpoint %q min_confidence %v outside (0,1]", ep.ID, ep.MinConfidence)
		}
	}

	// Synonym variants must resolve to exactly one canonical term.
	variantOwner := make(map[string]string)
	for canonical, variants := range c.Synonyms {
		key := strings.ToLower(canonical)
		for _, v := range variants {
			lv := strings.ToLower(strings.TrimSpace(v))
			if lv == "" {
				return configErrorf("synonym list for %q contains a blank variant", canonical)
			}
			if owner, dup := variantOwner[lv]; dup && owner != key {
				return configErrorf("synonym variant %q mapped to both %q and %q", v, owner, key)
			}
			variantOwner[lv] = key
		}
	}

	if err := validateEntities("brand", c.Entities.Brands); err != nil {
		return err
	}
	if err := validateEntities("place", c.Entities.Places); err != nil {
		return err
	}
	return nil
}

func validateEntities(kind string, entities []Entity) error {
	ids := make(map[string]bool, len(entities))
	for _, e := range entities {
		if e.ID == "" || e.Name == "" {
			return configErrorf("%s entity needs both id and name (got id=%q name=%q)", kind, e.ID, e.Name)
		}
		if ids[e.ID] {
			return configErrorf("duplicate %s entity id %q", kind, e.ID)
		}
		ids[e.ID] = true
	}
	return nil
}

// finish builds the derived lookup indexes. Called exactly once, after
// validation, before the Config is published.
func (c *Config) finish() {
	c.synonymIndex = make(map[string]string)
	c.vocabulary = make(map[string]struct{})
	for canonical, variants := range c.Synonyms {
		key := strings.ToLower(canonical)
		c.addVocabulary(key)
		for _, v := range variants {
			lv := strings.ToLower(strings.TrimSpace(v))
			c.synonymIndex[lv] = key
			c.addVocabulary(lv)
			if words := len(strings.Fields(lv)); words > c.maxSynonymLen {
				c.maxSynonymLen = words
			}
		}
	}

	c.entityIndex = make(map[string]entityRef)
	c.indexEntities("brand", c.Entities.Brands)
	c.indexEntities("place", c.Entities.Places)

	c.fieldIndex = make(map[string]string)
	for field, aliases := range c.FieldAliases {
		c.fieldIndex[strings.ToLower(field)] = field
		for _, a := range aliases {
			c.fieldIndex[strings.ToLower(a)] = field
		}
	}

	c.stopwordSet = make(map[string]struct{}, len(c.Stopwords))
	for _, w := range c.Stopwords {
		c.stopwordSet[strings.ToLower(w)] = struct{}{}
	}

	c.endpointsByID = make(map[string]*EndpointDescriptor, len(c.Endpoints))
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		c.endpointsByID[ep.ID] = ep
		for _, bt := range ep.BoostTerms {
			c.addVocabulary(strings.ToLower(bt.Term))
		}
	}
}

func (c *Config) addVocabulary(term string) {
	for _, tok := range strings.Fields(term) {
		c.vocabulary[tok] = struct{}{}
	}
}

func (c *Config) indexEntities(kind string, entities []Entity) {
	for _, e := range entities {
		names := append([]string{e.Name}, e.Aliases...)
		for _, n := range names {
			ln := strings.ToLower(strings.TrimSpace(n))
			if ln == "" {
				continue
			}
			c.entityIndex[ln] = entityRef{ID: e.ID, Kind: kind}
			if words := len(strings.Fields(ln)); words > c.maxEntityLen {
				c.maxEntityLen = words
			}
		}
	}
}

// Endpoint returns the descriptor for an endpoint id.
func (c *Config) Endpoint(id string) (*EndpointDescriptor, bool) {
	ep, ok := c.endpointsByID[id]
	return ep, ok
}

// CanonicalTerm resolves a synonym variant to its canonical term. The lookup
// is case-insensitive; the bool reports whether a mapping exists.
func (c *Config) CanonicalTerm(token string) (string, bool) {
	canonical, ok := c.synonymIndex[strings.ToLower(token)]
	return canonical, ok
}

// LookupEntity resolves a name or alias to its canonical entity. Matching is
// case-insensitive and whole-phrase.
func (c *Config) LookupEntity(phrase string) (id, kind string, ok bool) {
	ref, ok := c.entityIndex[strings.ToLower(phrase)]
	return ref.ID, ref.Kind, ok
}

// LookupField resolves a field name or alias to the canonical field name.
func (c *Config) LookupField(token string) (string, bool) {
	field, ok := c.fieldIndex[strings.ToLower(token)]
	return field, ok
}

// InVocabulary reports whether a token belongs to the domain vocabulary
// (boost-term tokens plus the synonym dictionary).
func (c *Config) InVocabulary(token string) bool {
	_, ok := c.vocabulary[strings.ToLower(token)]
	return ok
}

// IsStopword reports whether a token is a configured stopword.
func (c *Config) IsStopword(token string) bool {
	_, ok := c.stopwordSet[strings.ToLower(token)]
	return ok
}

// MaxEntityTokens is the longest entity name or alias in tokens, bounding the
// n-gram scan during entity recognition.
func (c *Config) MaxEntityTokens() int {
	if c.maxEntityLen == 0 {
		return 1
	}
	return c.maxEntityLen
}

// MaxSynonymTokens is the longest synonym variant in tokens, bounding the
// n-gram scan during canonicalization.
func (c *Config) MaxSynonymTokens() int {
	if c.maxSynonymLen == 0 {
		return 1
	}
	return c.maxSynonymLen
}
