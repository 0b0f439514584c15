// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package delegate

import (
	"context"
	"io"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/sirseerhq/retrycore/internal/retrydriver"
)

// Anthropic adapts an anthropic.Client Messages.New call to
// retrydriver.Delegate: a third, structurally distinct provider alongside
// GitHub (GraphQL) and OpenAI (chat completion), so a single hedged
// request can race attempts across all three.
func Anthropic(client *anthropic.Client, model string) retrydriver.Delegate {
	return func(ctx context.Context, req *retrydriver.Request) (*retrydriver.Response, error) {
		prompt, err := readPrompt(req)
		if err != nil {
			return nil, err
		}

		resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return nil, err
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if b, ok := block.AsAny().(anthropic.TextBlock); ok {
				text.WriteString(b.Text)
			}
		}

		return &retrydriver.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(text.String())),
		}, nil
	}
}
