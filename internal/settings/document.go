// ABOUTME: Conversion between aggregates and remote document payloads
// ABOUTME: Documents are protobuf Structs addressed by user-scoped collection paths

package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// DocumentID is the fixed document name of the settings backup inside a
// user's settings collection.
const DocumentID = "preferences"

// ErrMalformedDocument is returned when a remote document cannot be decoded
// into an aggregate.
var ErrMalformedDocument = errors.New("malformed settings document")

// DocumentRef returns the collection and document ID holding userID's backup.
func DocumentRef(userID string) (collection, id string) {
	return "users/" + userID + "/settings", DocumentID
}

// ToDocument serializes an aggregate into a document payload. The payload
// carries version and lastModified at the top level alongside the sections.
func ToDocument(a Aggregate) (*structpb.Struct, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	doc, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("building document: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a document payload. Older schema versions are
// migrated on the way in.
func FromDocument(doc *structpb.Struct) (Aggregate, error) {
	if doc == nil {
		return Aggregate{}, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}
	raw, err := json.Marshal(doc.AsMap())
	if err != nil {
		return Aggregate{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	var a Aggregate
	if err := json.Unmarshal(raw, &a); err != nil {
		return Aggregate{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if a.UserID == "" {
		return Aggregate{}, fmt.Errorf("%w: missing userId", ErrMalformedDocument)
	}
	a.LastModified = normalizeTime(a.LastModified)
	return a.Migrate(), nil
}

// Marshal encodes an aggregate for local persistence.
func Marshal(a Aggregate) ([]byte, error) {
	return json.Marshal(a)
}

// Unmarshal decodes an aggregate from local persistence.
func Unmarshal(data []byte) (Aggregate, error) {
	var a Aggregate
	if err := json.Unmarshal(data, &a); err != nil {
		return Aggregate{}, fmt.Errorf("decoding settings: %w", err)
	}
	a.LastModified = normalizeTime(a.LastModified)
	return a.Migrate(), nil
}
