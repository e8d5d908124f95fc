package resourcefactory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/resourcefactory/errors"
)

// paramsSchema is the JSON Schema Params documents are validated against
// before NewFactory ever sees them, mirroring how
// cmd/schema-exporter/validate.go validates a component schema against a
// meta-schema (SPEC_FULL §C9).
const paramsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["uri"],
  "properties": {
    "uri": {"type": "string", "minLength": 1},
    "max_resources": {"type": "integer", "minimum": 1},
    "stream_buffer_size": {"type": "integer", "minimum": 1},
    "control_port": {"type": "integer", "minimum": 0, "maximum": 65535},
    "http_rate_limit": {"type": "number", "minimum": 0},
    "http_burst": {"type": "integer", "minimum": 0},
    "reload_support": {"type": "boolean"},
    "http_server": {"type": "boolean"},
    "reload_fanout_subject": {"type": "string"},
    "reload_request_subject": {"type": "string"},
    "nats_object_bucket": {"type": "string"}
  },
  "additionalProperties": false
}`

// fileParams is the YAML-facing shape of Params: snake_case fields and two
// boolean flags instead of a bitmask, since a config file author shouldn't
// need to know the Flags bit layout.
type fileParams struct {
	URI                 string  `yaml:"uri" json:"uri"`
	MaxResources        int     `yaml:"max_resources" json:"max_resources,omitempty"`
	StreamBufferSize    int     `yaml:"stream_buffer_size" json:"stream_buffer_size,omitempty"`
	ControlPort         int     `yaml:"control_port" json:"control_port"`
	HTTPRateLimit       float64 `yaml:"http_rate_limit" json:"http_rate_limit"`
	HTTPBurst           int     `yaml:"http_burst" json:"http_burst"`
	ReloadSupport       bool    `yaml:"reload_support" json:"reload_support"`
	HTTPServer          bool    `yaml:"http_server" json:"http_server"`
	ReloadFanoutSubject string  `yaml:"reload_fanout_subject" json:"reload_fanout_subject"`
	ReloadRequestSubj   string  `yaml:"reload_request_subject" json:"reload_request_subject"`
	NATSObjectBucket    string  `yaml:"nats_object_bucket" json:"nats_object_bucket"`
}

// LoadFactoryParams reads a YAML document at path into Params, validating
// it against paramsSchema before returning. Validation failures are
// reported as ErrorInvalid-classified errors (errors.WrapInvalid) with the
// schema's field-level errors joined into the
// message (SPEC_FULL §C9). A NATS connection, if the deployment needs one,
// is not part of the file format — callers attach it via Params.NATSConn
// after loading.
func LoadFactoryParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, errors.WrapInvalid(err, "Config", "LoadFactoryParams", "failed to read config file")
	}

	var fp fileParams
	if err := yaml.Unmarshal(data, &fp); err != nil {
		return Params{}, errors.WrapInvalid(err, "Config", "LoadFactoryParams", "failed to parse yaml")
	}

	if err := validateParamsDocument(fp); err != nil {
		return Params{}, err
	}

	params := Params{
		URI:               fp.URI,
		MaxResources:      fp.MaxResources,
		StreamBufferSize:  fp.StreamBufferSize,
		ControlPort:       fp.ControlPort,
		HTTPRateLimit:     fp.HTTPRateLimit,
		HTTPBurst:         fp.HTTPBurst,
		ReloadFanoutSubj:  fp.ReloadFanoutSubject,
		ReloadRequestSubj: fp.ReloadRequestSubj,
		NATSObjectBucket:  fp.NATSObjectBucket,
	}
	if fp.ReloadSupport {
		params.Flags |= ReloadSupport
	}
	if fp.HTTPServer {
		params.Flags |= HTTPServer
	}
	return params, nil
}

// validateParamsDocument re-serializes fp to JSON and validates it against
// paramsSchema, matching cmd/schema-exporter/validate.go's
// marshal-then-gojsonschema.Validate pattern.
func validateParamsDocument(fp fileParams) error {
	docBytes, err := json.Marshal(fp)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "LoadFactoryParams", "failed to marshal document for validation")
	}

	schemaLoader := gojsonschema.NewStringLoader(paramsSchema)
	documentLoader := gojsonschema.NewBytesLoader(docBytes)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "LoadFactoryParams", "schema validation error")
	}
	if !result.Valid() {
		msg := "factory params failed schema validation:"
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf(" [%s: %s]", desc.Field(), desc.Description())
		}
		return errors.WrapInvalid(fmt.Errorf("%s", msg), "Config", "LoadFactoryParams", "invalid params document")
	}
	return nil
}
