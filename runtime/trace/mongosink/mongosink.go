// Package mongosink provides an optional secondary trace sink backed by
// MongoDB, mirroring the teacher's own Mongo-backed run/runlog stores
// (features/run/mongo, features/runlog/mongo). It exists so a process can
// query historical traces (for the Replay Engine, or external dashboards)
// without re-parsing JSONL files; it is never the canonical sink and its
// failures must never affect the canonical FileSink.
package mongosink

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/failcore/runtime/runtime/trace"
)

// Sink appends trace events as documents to a MongoDB collection.
type Sink struct {
	coll *mongo.Collection
}

// New constructs a Sink writing to coll. The caller owns the client
// lifecycle; Close on Sink does not disconnect the client, only releases
// sink-local state (there is none, but the method exists to satisfy
// trace.Sink).
func New(coll *mongo.Collection) *Sink {
	return &Sink{coll: coll}
}

// Append inserts e as a document. The stored document layout matches
// trace.Event's JSON tags so external queries can use the same field names
// as the JSONL trace.
func (s *Sink) Append(ctx context.Context, e trace.Event) error {
	doc, err := eventToBSON(e)
	if err != nil {
		return err
	}
	_, err = s.coll.InsertOne(ctx, doc)
	return err
}

// Flush is a no-op: MongoDB writes are acknowledged synchronously by the
// driver's default write concern, so there is no local buffer to flush.
func (s *Sink) Flush(context.Context) error { return nil }

// Close is a no-op; the caller owns the underlying client/session.
func (s *Sink) Close() error { return nil }

// ByRun returns every event recorded for runID, ordered by sequence number,
// for use by a Replay Engine configured against this store instead of a
// local JSONL file.
func (s *Sink) ByRun(ctx context.Context, runID string) ([]trace.Event, error) {
	cur, err := s.coll.Find(ctx, bson.M{"run.run_id": runID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []trace.Event
	for cur.Next(ctx) {
		// Decode into the generic document shape first: the stored keys
		// are the event's JSON tags (snake_case), which do not match the
		// bson driver's default (lowercased-only) field naming, so a
		// direct struct Decode would silently drop fields like run_id.
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		var e trace.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, cur.Err()
}

// eventToBSON round-trips through the event's own JSON encoding so the
// stored document shape matches the JSONL trace field-for-field, rather
// than duplicating field tags in a parallel bson struct.
func eventToBSON(e trace.Event) (bson.M, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
