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

package backoff

import (
	"strconv"
	"strings"
)

// ParseSpec parses the textual backoff grammar described in spec.md §3:
//
//	exponential=initialMs:maxMs[:multiplier]   (base)
//	fibonacci=initialMs:maxMs                  (base)
//	fixed=ms                                   (base)
//	random=minMs:maxMs                         (base)
//	jitter=minRate:maxRate                     (modifier)
//	maxAttempts=n                              (modifier)
//
// Options are comma-separated; at most one base option may appear, and each
// modifier may appear at most once. A missing base defaults to
// exponential=200:10000:2.0; a missing jitter modifier defaults to
// [-0.2, 0.2] -- but jitter is only applied if explicitly requested, since
// the default backoff (spec.md §3) is plain exponential with no jitter
// layered on unless the caller writes "jitter=...".
//
// Whitespace around tokens is not permitted, and keys are case-sensitive, so
// "exponential=1000:60000,fixed=1000" (two bases) and
// "texponential=1000:60000:2.0" (typo) both fail with an
// *InvalidArgumentError, as does a duplicated key.
func ParseSpec(spec string) (Backoff, error) {
	if strings.TrimSpace(spec) == "" {
		return DefaultExponential(), nil
	}

	var (
		base        Backoff
		baseSeen    bool
		jitterSeen  bool
		jitterMin   = -0.2
		jitterMax   = 0.2
		maxAttempts uint32
		capSeen     bool
	)

	for _, opt := range strings.Split(spec, ",") {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, invalidArg("spec", "malformed option, expected key=value: "+opt)
		}

		switch key {
		case "exponential", "fibonacci", "fixed", "random":
			if baseSeen {
				return nil, invalidArg("spec", "more than one base option specified")
			}
			b, err := parseBase(key, value)
			if err != nil {
				return nil, err
			}
			base = b
			baseSeen = true

		case "jitter":
			if jitterSeen {
				return nil, invalidArg("spec", "duplicate key: jitter")
			}
			minR, maxR, err := parseJitter(value)
			if err != nil {
				return nil, err
			}
			jitterMin, jitterMax = minR, maxR
			jitterSeen = true

		case "maxAttempts":
			if capSeen {
				return nil, invalidArg("spec", "duplicate key: maxAttempts")
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, invalidArg("maxAttempts", "must be a positive integer")
			}
			maxAttempts = uint32(n)
			capSeen = true

		default:
			return nil, invalidArg("spec", "unrecognized key: "+key)
		}
	}

	if !baseSeen {
		base = DefaultExponential()
	}

	result := base
	if jitterSeen {
		jittered, err := WithJitter(result, jitterMin, jitterMax, nil)
		if err != nil {
			return nil, err
		}
		result = jittered
	}
	if capSeen {
		capped, err := WithMaxAttempts(result, maxAttempts)
		if err != nil {
			return nil, err
		}
		result = capped
	}
	return result, nil
}

func parseBase(key, value string) (Backoff, error) {
	switch key {
	case "fixed":
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, invalidArg("fixed", "expected integer milliseconds")
		}
		return Fixed(ms)

	case "random":
		parts := strings.Split(value, ":")
		if len(parts) != 2 {
			return nil, invalidArg("random", "expected minMs:maxMs")
		}
		minMs, err1 := strconv.ParseInt(parts[0], 10, 64)
		maxMs, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return nil, invalidArg("random", "expected integer minMs:maxMs")
		}
		return Random(minMs, maxMs, nil)

	case "fibonacci":
		parts := strings.Split(value, ":")
		if len(parts) != 2 {
			return nil, invalidArg("fibonacci", "expected initialMs:maxMs")
		}
		initMs, err1 := strconv.ParseInt(parts[0], 10, 64)
		maxMs, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return nil, invalidArg("fibonacci", "expected integer initialMs:maxMs")
		}
		return Fibonacci(initMs, maxMs)

	case "exponential":
		parts := strings.Split(value, ":")
		if len(parts) != 2 && len(parts) != 3 {
			return nil, invalidArg("exponential", "expected initialMs:maxMs[:multiplier]")
		}
		initMs, err1 := strconv.ParseInt(parts[0], 10, 64)
		maxMs, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return nil, invalidArg("exponential", "expected integer initialMs:maxMs")
		}
		multiplier := 2.0
		if len(parts) == 3 {
			m, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return nil, invalidArg("exponential", "expected float multiplier")
			}
			multiplier = m
		}
		return Exponential(initMs, maxMs, multiplier)

	default:
		return nil, invalidArg("spec", "unrecognized base key: "+key)
	}
}

func parseJitter(value string) (minRate, maxRate float64, err error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, invalidArg("jitter", "expected minRate:maxRate")
	}
	minR, err1 := strconv.ParseFloat(parts[0], 64)
	maxR, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, invalidArg("jitter", "expected float minRate:maxRate")
	}
	if minR < -1 || minR > 1 || maxR < -1 || maxR > 1 || minR > maxR {
		return 0, 0, invalidArg("jitter", "rates must be in [-1, 1] with minRate <= maxRate")
	}
	return minR, maxR, nil
}
