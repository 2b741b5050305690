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

// Command chattmpl is a small CLI around pkg/dialect's detect/render/
// parse pipeline.
//
// Usage:
//
//	chattmpl render --template model.jinja --input request.json
//	chattmpl parse --format hermes-2-pro --input completion.txt
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/mybigday/chattmpl/pkg/chatlog"
	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/dialect"
	"github.com/mybigday/chattmpl/pkg/msgdiff"
	"github.com/mybigday/chattmpl/pkg/template"
)

// CLI defines the command-line interface.
type CLI struct {
	Render RenderCmd `cmd:"" help:"Detect a dialect from a template and render a prompt plus grammar."`
	Parse  ParseCmd  `cmd:"" help:"Parse a raw model completion into a structured message."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// RenderCmd detects a chat format from a raw template source and
// renders RenderInputs (read from --input, or stdin) through it.
type RenderCmd struct {
	Template string `help:"Path to the raw Jinja template source used for dialect detection." type:"path" required:""`
	Input    string `help:"Path to a JSON-encoded RenderInputs document (defaults to stdin)." type:"path"`
	Format   string `help:"Force a specific dialect instead of detecting one from --template."`
}

func (c *RenderCmd) Run(cli *CLI) error {
	templateSrc, err := os.ReadFile(c.Template)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	raw, err := readInput(c.Input)
	if err != nil {
		return err
	}
	var inputs chatmsg.RenderInputs
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return fmt.Errorf("decode render inputs: %w", err)
	}

	format := chatmsg.ChatFormat(c.Format)
	if format == "" {
		format = dialect.Detect(string(templateSrc), len(inputs.Tools) > 0, inputs.JSONSchema != "", inputs.ToolChoice)
	}
	chatlog.Logger().Debug("detected dialect", "format", format)

	tmpl := template.Templates{Default: template.MemEngine{GenerationPromptRole: chatmsg.RoleAssistant}}
	params, err := dialect.Render(format, inputs, tmpl)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	return writeJSON(params)
}

// ParseCmd parses a raw completion string under a named dialect.
type ParseCmd struct {
	Format  string `help:"Dialect to parse with (e.g. hermes-2-pro, mistral-nemo)." required:""`
	Input   string `help:"Path to the raw completion text (defaults to stdin)." type:"path"`
	Partial bool   `help:"Treat input as a mid-stream, possibly-truncated completion."`
	Prev    string `help:"Path to a previously parsed Message JSON document, to diff against."`
}

func (c *ParseCmd) Run(cli *CLI) error {
	raw, err := readInput(c.Input)
	if err != nil {
		return err
	}

	syntax := chatmsg.ParserSyntax{
		Format:          chatmsg.ChatFormat(c.Format),
		ReasoningFormat: chatmsg.ReasoningFormatAuto,
		ParseToolCalls:  true,
	}
	msg, err := dialect.Parse(syntax, string(raw), c.Partial)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if c.Prev == "" {
		return writeJSON(msg)
	}

	prevRaw, err := os.ReadFile(c.Prev)
	if err != nil {
		return fmt.Errorf("read prev message: %w", err)
	}
	var prev chatmsg.Message
	if err := json.Unmarshal(prevRaw, &prev); err != nil {
		return fmt.Errorf("decode prev message: %w", err)
	}
	diffs, err := msgdiff.Diff(prev, msg)
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	return writeJSON(diffs)
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("chattmpl"),
		kong.Description("Chat-template dialect detection, rendering and streaming tool-call parsing."),
		kong.UsageOnError(),
	)

	level, err := chatlog.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	chatlog.Init(level, os.Stderr)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
