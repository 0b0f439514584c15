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

	openai "github.com/sashabaranov/go-openai"

	"github.com/sirseerhq/retrycore/internal/retrydriver"
)

// OpenAI adapts an *openai.Client chat completion call to
// retrydriver.Delegate, structurally different from the HTTP and GitHub
// delegates: req carries a prompt via GetBody rather than a request body
// to be proxied verbatim, and the response text (not headers or a raw
// byte stream) is what callers want duplicated/hedged on.
func OpenAI(client *openai.Client, model string) retrydriver.Delegate {
	return func(ctx context.Context, req *retrydriver.Request) (*retrydriver.Response, error) {
		prompt, err := readPrompt(req)
		if err != nil {
			return nil, err
		}

		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return &retrydriver.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}, nil
		}

		return &retrydriver.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(resp.Choices[0].Message.Content)),
		}, nil
	}
}

// readPrompt extracts the request body GetBody carries as the chat
// prompt; a request with no GetBody yields an empty prompt.
func readPrompt(req *retrydriver.Request) (string, error) {
	if req.GetBody == nil {
		return "", nil
	}
	body, err := req.GetBody()
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
