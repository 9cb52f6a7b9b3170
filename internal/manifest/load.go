package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cameronsjo/coxswain/internal/fileutil"
)

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	m := &Manifest{
		Units:           make([]Unit, 0, len(entries)),
		trailingNewline: bytes.HasSuffix(data, []byte("\n")),
	}

	for i, raw := range entries {
		u, err := parseUnit(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidManifest, i, err)
		}
		m.Units = append(m.Units, u)
	}

	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the manifest to path atomically.
func (m *Manifest) Save(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// Marshal encodes the manifest as a two-space indented JSON array.
func (m *Manifest) Marshal() ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('[')
	for i := range m.Units {
		if i > 0 {
			compact.WriteByte(',')
		}
		obj, err := m.Units[i].marshalObject()
		if err != nil {
			return nil, fmt.Errorf("encode entry %d: %w", i, err)
		}
		compact.Write(obj)
	}
	compact.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent manifest: %w", err)
	}
	if m.trailingNewline {
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

// SetVersion records a new version for the unit at index.
func (m *Manifest) SetVersion(index int, version string) error {
	if index < 0 || index >= len(m.Units) {
		return fmt.Errorf("unit index %d out of range (%d units)", index, len(m.Units))
	}
	m.Units[index].Version = version
	m.Units[index].dirty = true
	return nil
}

// UpdateVersion re-reads the manifest at path, records version for the unit
// at index and writes the whole file back. app must match the entry at index
// so an edited manifest is never updated at the wrong position.
func UpdateVersion(path string, index int, app, version string) error {
	m, err := Load(path)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(m.Units) {
		return fmt.Errorf("%w: unit %s at index %d no longer present", ErrManifestChanged, app, index)
	}
	if got := m.Units[index].App; got != app {
		return fmt.Errorf("%w: expected %s at index %d, found %s", ErrManifestChanged, app, index, got)
	}
	if err := m.SetVersion(index, version); err != nil {
		return err
	}
	return m.Save(path)
}

func parseUnit(raw json.RawMessage) (Unit, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return Unit{}, err
	}

	u := Unit{Version: DefaultVersion, fields: fields}
	for _, f := range fields {
		s, ok, err := scalarString(f.value)
		if err != nil {
			if f.key == KeyApp || f.key == KeyPath || f.key == KeyVersion || f.key == KeyYAML {
				return Unit{}, fmt.Errorf("field %q: %w", f.key, err)
			}
			continue
		}
		switch f.key {
		case KeyApp:
			u.App = s
		case KeyPath:
			u.Path = s
		case KeyVersion:
			if ok {
				u.Version = s
			}
		case KeyYAML:
			u.YAML = s
		}
	}
	return u, nil
}

// decodeObject splits a JSON object into its fields, keeping key order.
func decodeObject(raw json.RawMessage) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("entry is not an object")
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, field{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

// scalarString returns the string form of a JSON scalar. Numbers and
// booleans keep their literal text. ok is false for null.
func scalarString(raw json.RawMessage) (s string, ok bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", false, nil
	}

	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case '{', '[':
		return "", false, errors.New("expected a scalar value")
	default:
		return string(trimmed), true, nil
	}
}

func (u *Unit) marshalObject() ([]byte, error) {
	if u.fields == nil {
		return u.marshalFresh()
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	wroteVersion := false
	for i, f := range u.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, f.key); err != nil {
			return nil, err
		}
		if f.key == KeyVersion && u.dirty {
			if err := writeString(&buf, u.Version); err != nil {
				return nil, err
			}
			wroteVersion = true
			continue
		}
		buf.Write(f.value)
	}
	if u.dirty && !wroteVersion {
		if len(u.fields) > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, KeyVersion); err != nil {
			return nil, err
		}
		if err := writeString(&buf, u.Version); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalFresh encodes a unit that was not read from a file.
func (u *Unit) marshalFresh() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	pairs := [][2]string{
		{KeyApp, u.App},
		{KeyPath, u.Path},
		{KeyVersion, u.Version},
		{KeyYAML, u.YAML},
	}
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, p[0]); err != nil {
			return nil, err
		}
		if err := writeString(&buf, p[1]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	if err := writeString(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
