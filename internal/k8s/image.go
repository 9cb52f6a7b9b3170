// Package k8s renders container image references and rewrites them inside
// Kubernetes manifest files.
package k8s

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/distribution/reference"
)

// DefaultImageTemplate reproduces the registry layout the deployment
// repositories were built around.
const DefaultImageTemplate = "vmapi/vml-s2:{{ .App }}.{{ .Version }}"

// ErrInvalidImageRef indicates a rendered image reference is not a valid
// docker reference.
var ErrInvalidImageRef = errors.New("invalid image reference")

// ImageData is the template context for image references.
type ImageData struct {
	App     string
	Version string
	Env     string
	Repo    string
}

// ImageTemplate renders image references for units.
type ImageTemplate struct {
	tmpl *template.Template
}

// ParseImageTemplate compiles text with the sprig function map.
func ParseImageTemplate(text string) (*ImageTemplate, error) {
	if text == "" {
		text = DefaultImageTemplate
	}
	tmpl, err := template.New("image").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse image template: %w", err)
	}
	return &ImageTemplate{tmpl: tmpl}, nil
}

// Render produces the image reference for data and validates it.
func (t *ImageTemplate) Render(data ImageData) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render image template: %w", err)
	}
	ref := buf.String()
	if err := ValidateImageRef(ref); err != nil {
		return "", err
	}
	return ref, nil
}

// ValidateImageRef checks ref parses as a docker image reference.
func ValidateImageRef(ref string) error {
	if _, err := reference.ParseNormalizedNamed(ref); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidImageRef, ref, err)
	}
	return nil
}
