package sync

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Envelope describes the document root a payload is wrapped in on the wire.
type Envelope struct {
	Root       string            `yaml:"root"`
	Namespaces map[string]string `yaml:"namespaces"`
}

const DefaultEnvelopeRoot = "soapenv:Envelope"

// EncodeEnvelope writes p as an XML document under the envelope root.
//
// Object keys become elements in document order, arrays repeat the element
// of their key, keys starting with @ become attributes and # becomes text.
// Null and empty leaves are dropped, as are elements left without content.
func EncodeEnvelope(p Payload, env Envelope) ([]byte, error) {
	root := env.Root
	if root == "" {
		root = DefaultEnvelopeRoot
	}
	doc := gjson.Parse(p.Raw())
	if !doc.IsObject() {
		return nil, fmt.Errorf("payload must be an object to encode as %s", root)
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	err := enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="utf-8"`)})
	if err != nil {
		return nil, err
	}

	start := xml.StartElement{Name: xml.Name{Local: root}}
	prefixes := make([]string, 0, len(env.Namespaces))
	for prefix := range env.Namespaces {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns:" + prefix}, Value: env.Namespaces[prefix]})
	}
	start.Attr = append(start.Attr, attributesOf(doc)...)

	if err = enc.EncodeToken(start); err != nil {
		return nil, err
	}
	if err = encodeChildren(enc, doc); err != nil {
		return nil, err
	}
	if err = enc.EncodeToken(start.End()); err != nil {
		return nil, err
	}
	if err = enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func attributesOf(node gjson.Result) []xml.Attr {
	var result []xml.Attr
	node.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if strings.HasPrefix(name, "@") && !isEmptyNode(value) {
			result = append(result, xml.Attr{Name: xml.Name{Local: name[1:]}, Value: value.String()})
		}
		return true
	})
	return result
}

func encodeChildren(enc *xml.Encoder, node gjson.Result) error {
	var err error
	node.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch {
		case strings.HasPrefix(name, "@"):
		case name == "#":
			if !isEmptyNode(value) {
				err = enc.EncodeToken(xml.CharData(value.String()))
			}
		default:
			err = encodeElement(enc, name, value)
		}
		return err == nil
	})
	return err
}

func encodeElement(enc *xml.Encoder, name string, value gjson.Result) error {
	if isEmptyNode(value) {
		return nil
	}
	if value.IsArray() {
		for _, element := range value.Array() {
			if err := encodeElement(enc, name, element); err != nil {
				return err
			}
		}
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if value.IsObject() {
		start.Attr = attributesOf(value)
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := encodeChildren(enc, value); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(value.String())); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func isEmptyNode(value gjson.Result) bool {
	switch {
	case !value.Exists(), value.Type == gjson.Null:
		return true
	case value.Type == gjson.String:
		return value.Str == ""
	case value.IsArray():
		for _, element := range value.Array() {
			if !isEmptyNode(element) {
				return false
			}
		}
		return true
	case value.IsObject():
		empty := true
		value.ForEach(func(_, child gjson.Result) bool {
			empty = isEmptyNode(child)
			return empty
		})
		return empty
	}
	return false
}

// DecodeResponse turns a source response into a generic tree: JSON as is,
// XML as nested maps without the document root.
func DecodeResponse(contentType string, body []byte) (interface{}, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]interface{}{}, nil
	}
	switch {
	case strings.Contains(contentType, "json"), trimmed[0] == '{', trimmed[0] == '[':
		var result interface{}
		if err := json.Unmarshal(trimmed, &result); err != nil {
			return nil, fmt.Errorf("failed to decode json response %w", err)
		}
		return result, nil
	case strings.Contains(contentType, "xml"), trimmed[0] == '<':
		return decodeXML(trimmed)
	default:
		return map[string]interface{}{"#": string(body)}, nil
	}
}

type xmlFrame struct {
	name   string
	fields map[string]interface{}
	text   strings.Builder
}

func decodeXML(body []byte) (interface{}, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	top := &xmlFrame{fields: map[string]interface{}{}}
	stack := []*xmlFrame{top}
	for {
		token, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode xml response %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			frame := &xmlFrame{name: qualifiedName(t.Name), fields: map[string]interface{}{}}
			for _, attr := range t.Attr {
				frame.fields["@"+qualifiedName(attr.Name)] = attr.Value
			}
			stack = append(stack, frame)
		case xml.CharData:
			stack[len(stack)-1].text.Write(t)
		case xml.EndElement:
			if len(stack) < 2 {
				return nil, fmt.Errorf("failed to decode xml response, unbalanced </%s>", qualifiedName(t.Name))
			}
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			addXMLChild(stack[len(stack)-1].fields, frame.name, frame.value())
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("failed to decode xml response, unclosed <%s>", stack[len(stack)-1].name)
	}
	// strip the document root
	for _, root := range top.fields {
		return root, nil
	}
	return map[string]interface{}{}, nil
}

func (f *xmlFrame) value() interface{} {
	text := strings.TrimSpace(f.text.String())
	if len(f.fields) == 0 {
		return text
	}
	if text != "" {
		f.fields["#"] = text
	}
	return f.fields
}

func addXMLChild(fields map[string]interface{}, name string, value interface{}) {
	existing, exists := fields[name]
	if !exists {
		fields[name] = value
		return
	}
	if list, isList := existing.([]interface{}); isList {
		fields[name] = append(list, value)
		return
	}
	fields[name] = []interface{}{existing, value}
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}
