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

package dialect

import (
	"fmt"

	"github.com/mybigday/chattmpl/pkg/chatmsg"
	"github.com/mybigday/chattmpl/pkg/msgparser"
)

// Parse turns one chunk of raw model output into a chatmsg.Message
// according to syntax.Format, the single entry point every caller
// (streaming or not) drives. isPartial marks whether more bytes may
// still follow.
func Parse(syntax chatmsg.ParserSyntax, input string, isPartial bool) (chatmsg.Message, error) {
	p := msgparser.New(input, isPartial)

	var err error
	switch syntax.Format {
	case chatmsg.FormatContentOnly:
		err = parseContentOnly(p, syntax)
	case chatmsg.FormatGeneric:
		err = parseGeneric(p, syntax)
	case chatmsg.FormatMistralNemo:
		err = parsePrefixedJSONArray(p, syntax, "[TOOL_CALLS]")
	case chatmsg.FormatFireFunctionV2:
		err = parsePrefixedJSONArray(p, syntax, " functools[")
	case chatmsg.FormatDeepSeekR1:
		err = parseDeepSeekR1(p, syntax)
	case chatmsg.FormatDeepSeekV3_1:
		err = parseDeepSeekV3_1(p, syntax)
	case chatmsg.FormatFunctionaryV3_2:
		err = parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatFunctionaryV3_2])
	case chatmsg.FormatFunctionaryV3_1Llama3_1:
		err = parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatFunctionaryV3_1Llama3_1])
	case chatmsg.FormatHermes2Pro:
		err = parseHermes2Pro(p, syntax)
	case chatmsg.FormatLlama3X:
		err = parseLlama3X(p, syntax)
	case chatmsg.FormatLlama3XBuiltinTools:
		err = parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatLlama3XBuiltinTools])
	case chatmsg.FormatGranite:
		err = parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatGranite])
	case chatmsg.FormatNemotronV2:
		err = parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatNemotronV2])
	case chatmsg.FormatApertus:
		err = parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatApertus])
	case chatmsg.FormatLfm2WithJSONTools:
		err = parseBlockJSONToolCalls(p, syntax, blockJSONForms[chatmsg.FormatLfm2WithJSONTools])
	case chatmsg.FormatCommandR7B:
		err = parseCommandR7B(p, syntax)
	case chatmsg.FormatGptOss:
		err = parseGptOss(p, syntax)
	case chatmsg.FormatMagistral:
		err = parseMagistral(p, syntax)
	case chatmsg.FormatMinimaxM2, chatmsg.FormatQwen3CoderXML, chatmsg.FormatKimiK2,
		chatmsg.FormatApriel1_5, chatmsg.FormatXiaomiMimo, chatmsg.FormatSeedOss, chatmsg.FormatGlm4_5:
		err = parseXMLEngine(p, syntax)
	case chatmsg.FormatPegSimple, chatmsg.FormatPegNative, chatmsg.FormatPegConstructed:
		err = parsePeg(p, syntax)
	default:
		err = fmt.Errorf("dialect: no parser registered for format %q", syntax.Format)
	}
	if err != nil {
		return chatmsg.Message{}, err
	}
	if err := p.Finish(); err != nil {
		return chatmsg.Message{}, err
	}
	return p.Result(), nil
}

func parseContentOnly(p *msgparser.Parser, syntax chatmsg.ParserSyntax) error {
	tryParseReasoning(p, syntax)
	p.AddContent(p.ConsumeRest())
	return nil
}

