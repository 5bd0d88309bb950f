package registry

import (
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a site database.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format from the file extension; anything that is
// not .yml/.yaml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

const (
	schemaKey  = "$schema"
	versionKey = "$version"
)

// siteSource mirrors one entry of the database. Message fields are pointers so
// an absent key can be told apart from an empty one when inferring the strategy.
type siteSource struct {
	URL            string            `json:"url" yaml:"url"`
	ProfileURL     string            `json:"profileUrl" yaml:"profileUrl"`
	Data           string            `json:"data" yaml:"data"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ErrorType      string            `json:"errorType" yaml:"errorType"`
	ErrorMessage   *string           `json:"errorMessage" yaml:"errorMessage"`
	SuccessMessage *string           `json:"successMessage" yaml:"successMessage"`
	Disabled       bool              `json:"disabled" yaml:"disabled"`
	RegexCheck     string            `json:"regexCheck" yaml:"regexCheck"`
}

// rawEntry is a site as found in the source, in document order, before validation.
type rawEntry struct {
	name string
	src  siteSource
}

type document struct {
	version string
	entries []rawEntry
}

// decodeJSON walks the top-level object with gjson rather than unmarshalling
// into a map so that duplicate keys are seen instead of silently collapsed.
func decodeJSON(data []byte) (document, error) {
	var doc document

	if !gjson.ValidBytes(data) {
		return doc, errors.Wrap(ErrMalformed, "invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return doc, errors.Wrap(ErrMalformed, "top level must be an object of sites")
	}

	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch name {
		case schemaKey:
			return true
		case versionKey:
			doc.version = value.String()
			return true
		}

		if !value.IsObject() {
			err = &LoadError{Site: name, Err: errors.Wrap(ErrMalformed, "entry must be an object")}
			return false
		}

		var src siteSource
		if uerr := sonic.UnmarshalString(value.Raw, &src); uerr != nil {
			err = &LoadError{Site: name, Err: errors.Wrapf(ErrMalformed, "decode: %v", uerr)}
			return false
		}
		doc.entries = append(doc.entries, rawEntry{name: name, src: src})

		return true
	})

	return doc, err
}

func decodeYAML(data []byte) (document, error) {
	var doc document

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return doc, errors.Wrapf(ErrMalformed, "invalid yaml: %v", err)
	}
	if len(root.Content) == 0 {
		return doc, errors.Wrap(ErrMalformed, "empty document")
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return doc, errors.Wrap(ErrMalformed, "top level must be a mapping of sites")
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		value := mapping.Content[i+1]

		switch name {
		case schemaKey:
			continue
		case versionKey:
			doc.version = value.Value
			continue
		}

		if value.Kind != yaml.MappingNode {
			return doc, &LoadError{Site: name, Err: errors.Wrap(ErrMalformed, "entry must be a mapping")}
		}

		var src siteSource
		if err := value.Decode(&src); err != nil {
			return doc, &LoadError{Site: name, Err: errors.Wrapf(ErrMalformed, "decode: %v", err)}
		}
		doc.entries = append(doc.entries, rawEntry{name: name, src: src})
	}

	return doc, nil
}

// strategyOf resolves the classification rule. An explicit errorType wins;
// without one, configured messages imply the message strategy.
func strategyOf(src siteSource) Strategy {
	s := Strategy{Raw: src.ErrorType}
	if src.ErrorMessage != nil {
		s.ErrorMessage = *src.ErrorMessage
	}
	if src.SuccessMessage != nil {
		s.SuccessMessage = *src.SuccessMessage
	}

	switch src.ErrorType {
	case "status_code":
		s.Kind = StrategyStatusCode
	case "message":
		s.Kind = StrategyMessage
	case "":
		if src.ErrorMessage != nil || src.SuccessMessage != nil {
			s.Kind = StrategyMessage
		} else {
			s.Kind = StrategyStatusCode
		}
	default:
		s.Kind = StrategyUnknown
	}

	return s
}
