package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Indexer writes JSON documents into a single index.
type Indexer struct {
	client *opensearch.Client
	index  string
}

func NewIndexer(client *opensearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

// EnsureIndex creates the index with mapping when it does not exist yet.
// A nil mapping uses dynamic mapping.
func (i *Indexer) EnsureIndex(ctx context.Context, mapping any) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Join(ErrIndexFailed, err)
	}
	drain(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	opts := []func(*opensearchapi.IndicesCreateRequest){i.client.Indices.Create.WithContext(ctx)}
	if mapping != nil {
		body, err := json.Marshal(mapping)
		if err != nil {
			return errors.Join(ErrIndexFailed, err)
		}
		opts = append(opts, i.client.Indices.Create.WithBody(bytes.NewReader(body)))
	}
	res, err = i.client.Indices.Create(i.index, opts...)
	if err != nil {
		return errors.Join(ErrIndexFailed, err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("%w: create %s: %s", ErrIndexFailed, i.index, res.Status())
	}
	return nil
}

// Put indexes doc under id, replacing any previous version.
func (i *Indexer) Put(ctx context.Context, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Join(ErrIndexFailed, err)
	}

	res, err := i.client.Index(i.index, bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return errors.Join(ErrIndexFailed, err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("%w: %s/%s: %s", ErrIndexFailed, i.index, id, res.Status())
	}
	return nil
}

func drain(res *opensearchapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
