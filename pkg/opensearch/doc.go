// Package opensearch wraps the official OpenSearch Go client with
// environment configuration, a connect-time health check and a small
// document Indexer used to publish level calculations for search.
//
// Errors specific to connectivity are exposed as ErrConnectionFailed and
// ErrHealthcheckFailed; rejected writes surface as ErrIndexFailed.
//
// # Usage
//
//	client, err := opensearch.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	idx := opensearch.NewIndexer(client, cfg.LevelIndex)
//	err = idx.Put(ctx, level.ID, doc)
package opensearch
