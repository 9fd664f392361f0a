// Package xmlfile implements the "xml" extractor for XML documents on disk.
package xmlfile

import (
	"context"
	"encoding/xml"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func init() {
	_ = registry.RegisterExtractor("xml", NewExtractor)

	registry.RegisterInfo(registry.ComponentInfo{
		Type:        "xml",
		Kind:        core.KindExtractor,
		Description: "XML document source selecting records by element tag",
	})
}

// Extractor reads an XML file into one batch. record_tag names the element
// representing one record; every matching element at any depth becomes a
// record. root_element optionally narrows the search to a subtree first,
// given as a slash-separated path of child element names.
type Extractor struct {
	name        string
	logger      *zap.Logger
	filePath    string
	rootElement string
	recordTag   string
}

// NewExtractor constructs an XML extractor from its configuration block.
func NewExtractor(name string, params config.Params, logger *zap.Logger) (core.Extractor, error) {
	filePath := params.GetString("file_path", "")
	if filePath == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "xml extractor requires a file_path")
	}
	recordTag := params.GetString("record_tag", "")
	if recordTag == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "xml extractor requires a record_tag")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		name:        name,
		logger:      logger.With(zap.String("component", name)),
		filePath:    filePath,
		rootElement: params.GetString("root_element", ""),
		recordTag:   recordTag,
	}, nil
}

// Extract parses the document and shapes each record element into a record:
// attributes become fields, trimmed leading text becomes "_text", child
// elements nest recursively and repeated tags collapse into lists.
func (e *Extractor) Extract(_ context.Context) (*models.Batch, error) {
	e.logger.Info("extracting from xml file", zap.String("path", e.filePath))

	f, err := os.Open(e.filePath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to open xml file")
	}
	defer func() { _ = f.Close() }()

	root, err := parseDocument(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse xml document")
	}

	if e.rootElement != "" {
		root = findPath(root, e.rootElement)
		if root == nil {
			return nil, errors.Newf(errors.ErrorTypeData, "root element %q not found in document", e.rootElement)
		}
	}

	var records []models.Record
	for _, match := range findDescendants(root, e.recordTag) {
		records = append(records, toRecord(match))
	}
	if len(records) == 0 {
		e.logger.Warn("no records found", zap.String("record_tag", e.recordTag))
	}

	e.logger.Info("xml extraction completed", zap.Int("records", len(records)))
	return models.NewBatch(e.name, records), nil
}

// ValidateSource checks the file exists and is a regular file.
func (e *Extractor) ValidateSource(_ context.Context) error {
	info, err := os.Stat(e.filePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeExtraction, "xml file not accessible")
	}
	if info.IsDir() {
		return errors.Newf(errors.ErrorTypeExtraction, "%s is a directory", e.filePath)
	}
	return nil
}

// element is one parsed node. Names are local names with any namespace
// stripped, matching how records are keyed.
type element struct {
	name     string
	attrs    map[string]string
	text     string
	children []*element
}

// parseDocument builds the element tree from a token stream. Only text that
// precedes the first child of an element is kept, mirroring the usual
// element-text convention.
func parseDocument(r io.Reader) (*element, error) {
	decoder := xml.NewDecoder(r)

	var root *element
	var stack []*element
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, attr := range t.Attr {
				el.attrs[attr.Name.Local] = attr.Value
			}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				current := stack[len(stack)-1]
				if len(current.children) == 0 {
					current.text += string(t)
				}
			}
		}
	}

	if root == nil {
		return nil, errors.New(errors.ErrorTypeData, "document has no root element")
	}
	return root, nil
}

// findPath walks a slash-separated path of direct child names, taking the
// first match at each step.
func findPath(el *element, path string) *element {
	current := el
	for _, step := range strings.Split(path, "/") {
		var next *element
		for _, child := range current.children {
			if child.name == step {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// findDescendants collects every element below el (el itself excluded) whose
// name matches tag, in document order.
func findDescendants(el *element, tag string) []*element {
	var out []*element
	for _, child := range el.children {
		if child.name == tag {
			out = append(out, child)
		}
		out = append(out, findDescendants(child, tag)...)
	}
	return out
}

// toRecord converts one element. A tag seen more than once (or colliding
// with an attribute name) collapses into a list holding every value.
func toRecord(el *element) models.Record {
	record := make(models.Record, len(el.attrs)+len(el.children)+1)
	for key, value := range el.attrs {
		record[key] = value
	}
	if text := strings.TrimSpace(el.text); text != "" {
		record["_text"] = text
	}

	for _, child := range el.children {
		value := toRecord(child)
		if existing, ok := record[child.name]; ok {
			if list, ok := existing.([]interface{}); ok {
				record[child.name] = append(list, value)
			} else {
				record[child.name] = []interface{}{existing, value}
			}
		} else {
			record[child.name] = value
		}
	}
	return record
}
