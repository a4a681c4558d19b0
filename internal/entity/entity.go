// Package entity provides the catalog entity descriptor read by the preparers
// and the parser for the location annotations it carries.
package entity

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// TechDocsRefAnnotation points at the documentation source of an entity
	TechDocsRefAnnotation = "backstage.io/techdocs-ref"

	// ManagedByLocationAnnotation records where the entity descriptor itself was read from
	ManagedByLocationAnnotation = "backstage.io/managed-by-location"

	// DefaultNamespace is used when the descriptor does not name one
	DefaultNamespace = "default"
)

// maxNameLength bounds kind, namespace and name
const maxNameLength = 63

var (
	kindPattern      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)
	namePattern      = regexp.MustCompile(`^([A-Za-z0-9][-A-Za-z0-9_.]*)?[A-Za-z0-9]$`)
	namespacePattern = regexp.MustCompile(`^[a-z0-9]+(-+[a-z0-9]+)*$`)
)

// ErrUnrecognizedProtocol is returned when an entity carries no usable
// protocol annotation for the requested key
var ErrUnrecognizedProtocol = errors.New("unrecognized protocol")

// Entity is a catalog entity descriptor
type Entity struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
}

// Metadata holds the identifying metadata of an entity
type Metadata struct {
	Name        string            `yaml:"name" json:"name"`
	Namespace   string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// Reference is a parsed location annotation
type Reference struct {
	// Type is the protocol identifier, e.g. "dir", "github" or "url"
	Type string

	// Target is the protocol specific location
	Target string
}

// String returns the reference in annotation form
func (r Reference) String() string {
	return r.Type + ":" + r.Target
}

// Ref returns the entity reference in kind:namespace/name form
func (e *Entity) Ref() string {
	namespace := e.Metadata.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return strings.ToLower(fmt.Sprintf("%s:%s/%s", e.Kind, namespace, e.Metadata.Name))
}

// Annotation returns the value of the given annotation and whether it is set
func (e *Entity) Annotation(key string) (string, bool) {
	if e == nil || e.Metadata.Annotations == nil {
		return "", false
	}
	value, ok := e.Metadata.Annotations[key]
	return value, ok
}

// ParseReferenceAnnotation reads the annotation with the given key and splits
// it at the first colon into protocol and location
func ParseReferenceAnnotation(key string, e *Entity) (Reference, error) {
	if e == nil {
		return Reference{}, fmt.Errorf("%w: entity is nil", ErrUnrecognizedProtocol)
	}

	value, ok := e.Annotation(key)
	if !ok || value == "" {
		return Reference{}, fmt.Errorf("%w: no location annotation %q provided in entity %s",
			ErrUnrecognizedProtocol, key, e.Metadata.Name)
	}

	return ParseReference(value)
}

// ParseReference splits an annotation value into protocol and location
func ParseReference(value string) (Reference, error) {
	protocol, target, found := strings.Cut(value, ":")
	if !found || protocol == "" || target == "" {
		return Reference{}, fmt.Errorf("%w: failed to parse either protocol or location from %q",
			ErrUnrecognizedProtocol, value)
	}

	return Reference{
		Type:   protocol,
		Target: target,
	}, nil
}

// Load reads the first entity descriptor from a YAML file
func Load(path string) (*Entity, error) {
	//nolint:gosec // File path comes from the command line, this is expected behavior
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("entity file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read entity file %s: %w", path, err)
	}

	e, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entity file %s: %w", path, err)
	}

	return e, nil
}

// Decode parses the first YAML document of data as an entity
func Decode(data []byte) (*Entity, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	for {
		var e Entity
		err := decoder.Decode(&e)
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no entity found")
		}
		if err != nil {
			return nil, fmt.Errorf("invalid entity YAML: %w", err)
		}

		// Skip empty documents, e.g. a leading "---"
		if e.Kind == "" && e.Metadata.Name == "" {
			continue
		}

		if err := e.validate(); err != nil {
			return nil, err
		}
		return &e, nil
	}
}

// validate checks the fields every descriptor needs and applies the catalog
// naming rules to kind, namespace and name
func (e *Entity) validate() error {
	if e.Kind == "" {
		return fmt.Errorf("entity kind is required")
	}
	if e.Metadata.Name == "" {
		return fmt.Errorf("entity metadata.name is required")
	}
	if !validName(kindPattern, e.Kind) {
		return fmt.Errorf("invalid entity kind %q", e.Kind)
	}
	if !validName(namePattern, e.Metadata.Name) {
		return fmt.Errorf("invalid entity metadata.name %q: must be at most %d characters of [A-Za-z0-9] separated by [-_.]",
			e.Metadata.Name, maxNameLength)
	}
	if e.Metadata.Namespace != "" && !validName(namespacePattern, e.Metadata.Namespace) {
		return fmt.Errorf("invalid entity metadata.namespace %q: must be a lower case DNS label of at most %d characters",
			e.Metadata.Namespace, maxNameLength)
	}
	return nil
}

func validName(pattern *regexp.Regexp, value string) bool {
	return len(value) <= maxNameLength && pattern.MatchString(value)
}
