// Package redisstore provides an optional taint.Store backend for
// multi-process runs, so several executor instances sharing one Redis
// deployment observe the same taint state instead of each keeping an
// isolated MemStore. It issues commands directly on a caller-owned
// go-redis client rather than introducing a bespoke client wrapper.
package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/failcore/runtime/runtime/taint"
)

const keyPrefix = "failcore:taint:"

// Store is a taint.Store backed by Redis. The caller owns the client's
// lifecycle (connection pool, auth, TLS); Store only issues commands
// against it. Because taint.Store's method set predates a context
// plumbing requirement (it mirrors the in-process MemStore, which needs
// none), Store issues every Redis command against context.Background();
// callers needing per-call deadlines should wrap the client with their
// own timeout middleware.
type Store struct {
	client *redis.Client
	prefix string
}

// New constructs a Store. prefix, if non-empty, replaces the default key
// prefix — set a distinct prefix per run or per tenant to share one
// Redis deployment across isolated taint namespaces.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = keyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

var _ taint.Store = (*Store)(nil)

func (s *Store) tagsKey(stepID string) string { return s.prefix + "tags:" + stepID }
func (s *Store) valueKey(hash string) string  { return s.prefix + "value:" + hash }
func (s *Store) sinksKey() string             { return s.prefix + "sinks" }
func (s *Store) steppedKey() string           { return s.prefix + "tainted_steps" }
func (s *Store) sensitivityDistKey() string   { return s.prefix + "dist:sensitivity" }
func (s *Store) sourceDistKey() string        { return s.prefix + "dist:source" }

func (s *Store) IsTainted(stepID string) bool {
	ctx := context.Background()
	n, err := s.client.Exists(ctx, s.tagsKey(stepID)).Result()
	return err == nil && n > 0
}

func (s *Store) GetTags(stepID string) []taint.TaintTag {
	ctx := context.Background()
	raw, err := s.client.LRange(ctx, s.tagsKey(stepID), 0, -1).Result()
	if err != nil {
		return nil
	}
	tags := make([]taint.TaintTag, 0, len(raw))
	for _, item := range raw {
		var tag taint.TaintTag
		if err := json.Unmarshal([]byte(item), &tag); err == nil {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (s *Store) MarkTainted(stepID string, tags ...taint.TaintTag) {
	if len(tags) == 0 {
		return
	}
	ctx := context.Background()
	encoded := make([]any, 0, len(tags))
	for _, tag := range tags {
		b, err := json.Marshal(tag)
		if err != nil {
			continue
		}
		encoded = append(encoded, string(b))
	}
	if len(encoded) == 0 {
		return
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.tagsKey(stepID), encoded...)
	pipe.SAdd(ctx, s.steppedKey(), stepID)
	for _, tag := range tags {
		pipe.HIncrBy(ctx, s.sensitivityDistKey(), string(tag.Sensitivity), 1)
		pipe.HIncrBy(ctx, s.sourceDistKey(), string(tag.Source), 1)
	}
	_, _ = pipe.Exec(ctx)
}

func (s *Store) IndexValue(stepID string, value any) {
	hash, ok := hashValue(value)
	if !ok {
		return
	}
	ctx := context.Background()
	s.client.SAdd(ctx, s.valueKey(hash), stepID)
}

// DetectTaintedInputs mirrors MemStore's semantics: declared dependencies
// contribute their tags first, then a recursive walk over params looks
// for values matching a previously indexed tainted output.
func (s *Store) DetectTaintedInputs(params map[string]any, dependencies []string) []taint.TaintTag {
	ctx := context.Background()
	seen := make(map[string]bool)
	var out []taint.TaintTag

	for _, dep := range dependencies {
		if seen[dep] {
			continue
		}
		if tags := s.GetTags(dep); len(tags) > 0 {
			seen[dep] = true
			out = append(out, bumpTags(tags)...)
		}
	}

	for _, stepID := range s.matchValue(ctx, params) {
		if seen[stepID] {
			continue
		}
		if tags := s.GetTags(stepID); len(tags) > 0 {
			seen[stepID] = true
			out = append(out, bumpTags(tags)...)
		}
	}

	return out
}

func (s *Store) matchValue(ctx context.Context, root any) []string {
	seen := make(map[string]bool)
	var stepIDs []string

	var walk func(v any)
	walk = func(v any) {
		if hash, ok := hashValue(v); ok {
			ids, err := s.client.SMembers(ctx, s.valueKey(hash)).Result()
			if err == nil {
				for _, id := range ids {
					if !seen[id] {
						seen[id] = true
						stepIDs = append(stepIDs, id)
					}
				}
			}
		}
		switch vv := v.(type) {
		case map[string]any:
			keys := make([]string, 0, len(vv))
			for k := range vv {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(vv[k])
			}
		case []any:
			for _, item := range vv {
				walk(item)
			}
		}
	}
	walk(root)

	sort.Strings(stepIDs)
	return stepIDs
}

func (s *Store) RegisterSink(tool string) {
	ctx := context.Background()
	s.client.SAdd(ctx, s.sinksKey(), tool)
}

func (s *Store) IsSinkTool(tool string) bool {
	ctx := context.Background()
	ok, err := s.client.SIsMember(ctx, s.sinksKey(), tool).Result()
	return err == nil && ok
}

func (s *Store) GetSummary() taint.Summary {
	ctx := context.Background()
	steps, _ := s.client.SCard(ctx, s.steppedKey()).Result()
	sensitivity, _ := s.client.HGetAll(ctx, s.sensitivityDistKey()).Result()
	source, _ := s.client.HGetAll(ctx, s.sourceDistKey()).Result()

	summary := taint.Summary{
		TaintedSteps:            int(steps),
		SensitivityDistribution: make(map[string]int, len(sensitivity)),
		SourceDistribution:      make(map[string]int, len(source)),
	}
	for k, v := range sensitivity {
		summary.SensitivityDistribution[k] = atoi(v)
	}
	for k, v := range source {
		summary.SourceDistribution[k] = atoi(v)
	}
	return summary
}

func bumpTags(tags []taint.TaintTag) []taint.TaintTag {
	out := make([]taint.TaintTag, len(tags))
	for i, t := range tags {
		t.PropagationDepth++
		out[i] = t
	}
	return out
}

func hashValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if _, ok := v.(string); ok {
		return "", false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), true
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
