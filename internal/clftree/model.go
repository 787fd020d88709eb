package clftree

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dgallion1/treerule/internal/rules"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Model is a serialized fitted tree together with its feature names.
type Model struct {
	Features []string `json:"features" yaml:"features" validate:"required,min=1,dive,required"`
	Tree     Tree     `json:"tree" yaml:"tree" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Check validates field presence and then the tree structure.
func (m *Model) Check() error {
	if err := validate.Struct(m); err != nil {
		return errors.Mark(errors.Wrap(err, "model"), ErrInvalidTree)
	}
	return m.Tree.Validate(len(m.Features))
}

// Leaves runs the walk over the model's tree.
func (m *Model) Leaves(opts Options) (*rules.Table, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}
	return Leaves(&m.Tree, m.Features, opts)
}

// DecodeJSON reads a Model from JSON.
func DecodeJSON(r io.Reader) (*Model, error) {
	var m Model
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode model json"), ErrInvalidTree)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeYAML reads a Model from YAML.
func DecodeYAML(r io.Reader) (*Model, error) {
	var m Model
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode model yaml"), ErrInvalidTree)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}
