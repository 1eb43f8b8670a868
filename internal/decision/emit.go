package decision

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrEmit is the sentinel for failures producing or writing the
// decision document.
var ErrEmit = errors.New("emit decision")

// Supported output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

//go:embed schema.json
var decisionSchema []byte

// Emitter serializes decisions into a machine-parseable document.
// The document is fully encoded and validated before the first byte is
// written to the sink, so a failing sink never receives half a document
// and an invalid document is never written at all.
type Emitter struct {
	Format string
}

// Emit writes the decision document to w.
func (e Emitter) Emit(d Decision, w io.Writer) error {
	data, err := e.encode(d)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("%w: write: %w", ErrEmit, err)
	}

	return nil
}

// EmitFile writes the decision document to the file at path, creating
// or truncating it.
func (e Emitter) EmitFile(d Decision, path string) error {
	data, err := e.encode(d)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrEmit, path, err)
	}

	return nil
}

// encode marshals and validates the document.
func (e Emitter) encode(d Decision) ([]byte, error) {
	switch e.Format {
	case FormatYAML:
		return encodeYAML(d)
	case FormatJSON, "":
		return encodeJSON(d)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrEmit, e.Format)
	}
}

func encodeJSON(d Decision) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")

	err := enc.Encode(d)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal json: %w", ErrEmit, err)
	}

	err = validateJSON(buf.Bytes())
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// validateJSON checks the encoded document against the decision schema.
func validateJSON(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(decisionSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("%w: schema validation: %w", ErrEmit, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: document violates schema: %s", ErrEmit, strings.Join(details, "; "))
	}

	return nil
}

func encodeYAML(d Decision) ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal yaml: %w", ErrEmit, err)
	}

	// Round-trip check stands in for schema validation on the YAML path.
	var check Decision

	err = yaml.Unmarshal(data, &check)
	if err != nil {
		return nil, fmt.Errorf("%w: yaml round-trip: %w", ErrEmit, err)
	}

	return data, nil
}

// Parse reads a decision document back, auto-detecting the format.
// Parsing an emitted document reproduces the emitted fields.
func Parse(data []byte) (Decision, error) {
	var d Decision

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		err := json.Unmarshal(trimmed, &d)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: parse json: %w", ErrEmit, err)
		}

		return d, nil
	}

	err := yaml.Unmarshal(data, &d)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: parse yaml: %w", ErrEmit, err)
	}

	return d, nil
}
