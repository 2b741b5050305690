// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package toolspec builds chatmsg.ToolSpec values from Go types via
// struct-tag reflection, so callers with a typed argument struct never
// hand-write a JSON Schema string.
package toolspec

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mybigday/chattmpl/pkg/chatmsg"
)

// FromStruct builds a ToolSpec named name/description from T's fields.
//
// Supported tags (applied to T's fields):
//   - json:"name"            parameter name
//   - json:",omitempty"      optional parameter
//   - jsonschema:"required"             explicitly required
//   - jsonschema:"description=..."      parameter description
//   - jsonschema:"default=..."          default value
//   - jsonschema:"enum=val1|val2"       allowed values
//   - jsonschema:"minimum=N,maximum=M"  numeric bounds
func FromStruct[T any](name, description string) (chatmsg.ToolSpec, error) {
	schema, err := schemaForType[T]()
	if err != nil {
		return chatmsg.ToolSpec{}, fmt.Errorf("toolspec: %w", err)
	}
	return chatmsg.ToolSpec{
		Name:        name,
		Description: description,
		Parameters:  schema,
	}, nil
}

func schemaForType[T any]() (string, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	raw, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("decode schema: %w", err)
	}
	delete(fields, "$schema")
	delete(fields, "$id")

	out, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("re-encode schema: %w", err)
	}
	return string(out), nil
}
