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

package retryrule

// ContentPredicate inspects an aggregated response body.
type ContentPredicate func(content []byte) bool

// ContentAware is implemented by rules built with OnContent. The driver
// checks this before aggregating a response body (spec.md §4.3:
// "RetryRuleWithContent ... additionally receives the response" only when
// the rule actually needs it), so attempts with no content-aware rule never
// pay the aggregation cost.
type ContentAware interface {
	NeedsContent() bool
}

// OnContent restricts the rule to responses whose aggregated body matches
// pred. AttemptInfo.Content must be populated by the caller (the driver
// aggregates it via a BodyDuplicator up to RetryConfig.MaxContentLength
// before invoking a ContentAware rule).
func (b *Builder) OnContent(pred ContentPredicate) *Builder {
	b.contentPredicate = pred
	b.any = true
	return b
}

type contentAwareRule struct {
	RuleFunc
}

// NeedsContent implements ContentAware.
func (contentAwareRule) NeedsContent() bool { return true }

// wrapIfContentAware wraps r, when a content predicate is set, so the
// driver can detect, via a type assertion to ContentAware, that body
// aggregation is required before evaluation; otherwise r is returned as is.
func (rb *Builder) wrapIfContentAware(r RuleFunc) Rule {
	if rb.contentPredicate == nil {
		return r
	}
	return contentAwareRule{RuleFunc: r}
}
