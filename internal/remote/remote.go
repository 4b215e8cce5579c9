// ABOUTME: DocumentStore interface for the remote backup of settings snapshots
// ABOUTME: Documents are protobuf Structs addressed by collection path and ID

package remote

import (
	"context"
	"errors"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotFound is returned by GetDocument when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// DocumentStore is a user-scoped document database. Implementations return
// errors the syncerr package can classify: gRPC status errors, net errors or
// *syncerr.Error values.
type DocumentStore interface {
	GetDocument(ctx context.Context, collection, id string) (*structpb.Struct, error)
	SetDocument(ctx context.Context, collection, id string, doc *structpb.Struct) error
}

func docKey(collection, id string) string {
	return collection + "/" + id
}
