package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/projectcontour/contour-sub001/internal/resource"
)

// envelope is the on-disk document framing: a kind, identifying
// metadata, and a kind-specific spec payload.
type envelope struct {
	Kind     string                 `yaml:"kind"`
	Metadata metadata               `yaml:"metadata"`
	Spec     map[string]interface{} `yaml:"spec"`
}

type metadata struct {
	Name      string    `yaml:"name"`
	Namespace string    `yaml:"namespace"`
	Revision  int64     `yaml:"revision"`
	CreatedAt time.Time `yaml:"createdAt"`
}

// decoded is one document parsed from a file, before the store fills in
// synthesized metadata.
type decoded struct {
	object      resource.Object
	fingerprint string
}

// decodeFile parses every YAML document in data. A file either decodes
// completely or not at all; half-applying an edited file would leave
// the caller with a mix of old and new documents.
func decodeFile(data []byte) ([]decoded, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	var docs []decoded
	for index := 0; ; index++ {
		var env envelope
		if err := decoder.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, fmt.Errorf("document %d: %w", index, err)
		}
		if env.Kind == "" && env.Metadata.Name == "" && len(env.Spec) == 0 {
			continue
		}

		obj, err := decodeDocument(env)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", index, err)
		}
		docs = append(docs, decoded{object: obj, fingerprint: fingerprint(env)})
	}
}

// decodeDocument turns an envelope into a typed document. Spec payloads
// are matched to struct fields case-insensitively, and unknown spec
// fields are an error so a typo never silently drops configuration.
func decodeDocument(env envelope) (resource.Object, error) {
	if env.Kind == "" {
		return nil, errors.New("kind is required")
	}
	if env.Metadata.Name == "" {
		return nil, errors.New("metadata.name is required")
	}

	meta := resource.Meta{
		Namespace: env.Metadata.Namespace,
		Name:      env.Metadata.Name,
		Revision:  env.Metadata.Revision,
		CreatedAt: env.Metadata.CreatedAt,
	}
	if meta.Namespace == "" {
		meta.Namespace = "default"
	}

	switch resource.Kind(env.Kind) {
	case resource.KindProxy:
		var spec struct {
			VirtualHost *resource.VirtualHost
			Includes    []resource.Include
			Routes      []resource.Route
		}
		if err := decodeSpec(env.Spec, &spec); err != nil {
			return nil, err
		}
		return &resource.Proxy{
			Meta:        meta,
			VirtualHost: spec.VirtualHost,
			Includes:    spec.Includes,
			Routes:      spec.Routes,
		}, nil

	case resource.KindGatewayRoute:
		var spec struct {
			Parents   []resource.ParentRef
			Hostnames []string
			Rules     []resource.Route
		}
		if err := decodeSpec(env.Spec, &spec); err != nil {
			return nil, err
		}
		return &resource.GatewayRoute{
			Meta:      meta,
			Parents:   spec.Parents,
			Hostnames: spec.Hostnames,
			Rules:     spec.Rules,
		}, nil

	case resource.KindGateway:
		var spec struct {
			Listeners []resource.Listener
		}
		if err := decodeSpec(env.Spec, &spec); err != nil {
			return nil, err
		}
		return &resource.Gateway{Meta: meta, Listeners: spec.Listeners}, nil

	case resource.KindService:
		var spec struct {
			Ports []resource.ServicePort
		}
		if err := decodeSpec(env.Spec, &spec); err != nil {
			return nil, err
		}
		return &resource.Service{Meta: meta, Ports: spec.Ports}, nil

	case resource.KindSecret:
		var spec struct {
			Type string
			Cert string
			Key  string
		}
		if err := decodeSpec(env.Spec, &spec); err != nil {
			return nil, err
		}
		return &resource.Secret{
			Meta:       meta,
			Type:       spec.Type,
			Cert:       []byte(spec.Cert),
			PrivateKey: []byte(spec.Key),
		}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", env.Kind)
}

func decodeSpec(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}
	return nil
}

// fingerprint summarizes a document for change detection. Map rendering
// is deterministic: fmt prints map keys in sorted order.
func fingerprint(env envelope) string {
	return fmt.Sprintf("%s|%s/%s|%d|%d|%v",
		env.Kind,
		env.Metadata.Namespace, env.Metadata.Name,
		env.Metadata.Revision,
		env.Metadata.CreatedAt.UnixNano(),
		env.Spec,
	)
}
