package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/teranos/hireflow/errors"
)

// Output formats accepted by --format
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// writeStructured writes v as JSON or YAML. YAML goes through JSON first so
// both formats use the same snake_case field names.
func writeStructured(w io.Writer, v interface{}, format string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}
	switch format {
	case FormatJSON:
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return errors.Wrap(err, "failed to convert output")
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return errors.Wrap(err, "failed to marshal output to YAML")
		}
		_, err = w.Write(out)
		return err
	}
	return errors.Newf("unsupported format: %s (supported: table, json, yaml)", format)
}
